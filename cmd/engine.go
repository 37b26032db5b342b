package cmd

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/kozaktomas/facetrack/internal/config"
	"github.com/kozaktomas/facetrack/internal/recognizer"
	"github.com/kozaktomas/facetrack/internal/store"
)

// buildEngine assembles the recognition engine the way the device boot does:
// load config, pick the backend by capability, open the store, restore state.
func buildEngine() (*recognizer.Engine, *config.Config, error) {
	cfg := config.Load()

	st, err := store.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening data store: %w", err)
	}

	backend := recognizer.SelectBackend(cfg.Detector)
	engine, err := recognizer.NewEngine(cfg, backend, st)
	if err != nil {
		return nil, nil, fmt.Errorf("starting recognition engine: %w", err)
	}
	return engine, cfg, nil
}

// loadFrame reads one camera frame from an image file.
func loadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer f.Close()

	frame, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", filepath.Base(path), err)
	}
	return frame, nil
}

// frameBounds treats a whole frame as the face region, for import images
// that are already cropped to a face.
func frameBounds(frame image.Image) image.Rectangle {
	return frame.Bounds()
}

// parseBoxFlag parses an "x,y,w,h" bounding box flag. An empty flag yields an
// empty box, asking the backend to self-detect.
func parseBoxFlag(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("bounding box must be x,y,w,h, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("bounding box must be x,y,w,h, got %q", s)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("bounding box width and height must be positive, got %q", s)
	}
	return image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3]), nil
}

// isImageFile checks if a file has a supported frame extension.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// listFrameFiles returns the image files directly inside dir, sorted by name
// so numbered frame dumps replay in capture order.
func listFrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
