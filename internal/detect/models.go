package detect

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ModelInfo describes a downloadable detector model.
type ModelInfo struct {
	Name        string
	URL         string
	Filename    string
	MD5         string // optional checksum
	Size        int64  // expected size in bytes
	Description string
}

// models lists the detector models the device knows how to provision. The
// cascade is fetched once during provisioning; everything else runs offline.
var models = map[string]ModelInfo{
	"facefinder": {
		Name:        "Pigo Face Detector",
		URL:         "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder",
		Filename:    "facefinder",
		Size:        51764,
		Description: "Binary cascade classifier for frontal face detection",
	},
}

// Models returns the known models sorted by key.
func Models() []ModelInfo {
	keys := make([]string, 0, len(models))
	for key := range models {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]ModelInfo, 0, len(keys))
	for _, key := range keys {
		out = append(out, models[key])
	}
	return out
}

// LookupModel resolves a model by key.
func LookupModel(key string) (ModelInfo, error) {
	model, ok := models[key]
	if !ok {
		return ModelInfo{}, fmt.Errorf("unknown model %q", key)
	}
	return model, nil
}

// FetchModel downloads a model into outputDir, skipping the download when a
// verified copy is already present. Files are written to a temp name first so
// an interrupted download never leaves a truncated model behind.
func FetchModel(key, outputDir string) (string, error) {
	model, err := LookupModel(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating models directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, model.Filename)

	if verifyModel(outputPath, model) == nil {
		fmt.Printf("%s already present at %s\n", model.Name, outputPath)
		return outputPath, nil
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Get(model.URL)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", model.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", model.Name, resp.Status)
	}

	tmpPath := outputPath + ".download"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating model file: %w", err)
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, fmt.Sprintf("Fetching %s", model.Filename))
	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("downloading %s: %w", model.Name, err)
	}

	if err := verifyModel(tmpPath, model); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("installing model: %w", err)
	}
	return outputPath, nil
}

// verifyModel checks that a downloaded file matches the expected size and,
// when one is published, the MD5 checksum.
func verifyModel(path string, model ModelInfo) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model not present: %w", err)
	}
	if model.Size > 0 && info.Size() != model.Size {
		return fmt.Errorf("model %s has size %d, expected %d", model.Filename, info.Size(), model.Size)
	}

	if model.MD5 != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening model: %w", err)
		}
		defer f.Close()

		hash := md5.New()
		if _, err := io.Copy(hash, f); err != nil {
			return fmt.Errorf("hashing model: %w", err)
		}
		if actual := hex.EncodeToString(hash.Sum(nil)); actual != model.MD5 {
			return fmt.Errorf("model %s checksum mismatch: %s", model.Filename, actual)
		}
	}
	return nil
}
