package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var profileYAML []byte

type Config struct {
	Data     DataConfig
	Engine   EngineConfig   `yaml:"engine"`
	Detector DetectorConfig `yaml:"detector"`
	Web      WebConfig      `yaml:"web"`
}

// DataConfig describes where the engine keeps its files on flash.
type DataConfig struct {
	Dir string
}

// MetadataFile is the structured person metadata (JSON).
func (d *DataConfig) MetadataFile() string {
	return filepath.Join(d.Dir, "persons.json")
}

// BlobFile is the opaque recognizer state written by the active backend.
func (d *DataConfig) BlobFile() string {
	return filepath.Join(d.Dir, "recognizer.bin")
}

// FacesDir holds per-person sample thumbnails.
func (d *DataConfig) FacesDir() string {
	return filepath.Join(d.Dir, "faces")
}

// ModelsDir holds downloaded detector model files.
func (d *DataConfig) ModelsDir() string {
	return filepath.Join(d.Dir, "models")
}

type EngineConfig struct {
	MaxPersons          int     `yaml:"max_persons"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TargetSamples       int     `yaml:"target_samples"`
	SampleInterval      int     `yaml:"sample_interval"` // frames between auto-captured samples
	ThumbSize           int     `yaml:"thumb_size"`      // longest edge of stored sample thumbnails, px
}

type DetectorConfig struct {
	CascadeFile   string  `yaml:"cascade_file"` // defaults to <data>/models/facefinder
	MinSize       int     `yaml:"min_size"`
	MaxSize       int     `yaml:"max_size"`
	ShiftFactor   float64 `yaml:"shift_factor"`
	ScaleFactor   float64 `yaml:"scale_factor"`
	Quality       float64 `yaml:"quality"`        // cascade quality cutoff for recognition
	EnrollQuality float64 `yaml:"enroll_quality"` // lower cutoff used while enrolling
	ClusterIoU    float64 `yaml:"cluster_iou"`
	MaxDetections int     `yaml:"max_detections"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, returning the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(profileYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded profile.yaml: " + err.Error())
	}

	cfg.Data.Dir = envString("FACETRACK_DATA_DIR", "data")

	cfg.Engine.MaxPersons = envInt("FACETRACK_MAX_PERSONS", cfg.Engine.MaxPersons)
	cfg.Engine.SimilarityThreshold = envFloat("FACETRACK_SIMILARITY_THRESHOLD", cfg.Engine.SimilarityThreshold)
	cfg.Engine.TargetSamples = envInt("FACETRACK_TARGET_SAMPLES", cfg.Engine.TargetSamples)
	cfg.Engine.SampleInterval = envInt("FACETRACK_SAMPLE_INTERVAL", cfg.Engine.SampleInterval)
	cfg.Engine.ThumbSize = envInt("FACETRACK_THUMB_SIZE", cfg.Engine.ThumbSize)

	cfg.Detector.CascadeFile = envString("FACETRACK_CASCADE_FILE", cfg.Detector.CascadeFile)
	if cfg.Detector.CascadeFile == "" {
		cfg.Detector.CascadeFile = filepath.Join(cfg.Data.ModelsDir(), "facefinder")
	}
	cfg.Detector.MinSize = envInt("FACETRACK_DETECTOR_MIN_SIZE", cfg.Detector.MinSize)
	cfg.Detector.MaxSize = envInt("FACETRACK_DETECTOR_MAX_SIZE", cfg.Detector.MaxSize)
	cfg.Detector.Quality = envFloat("FACETRACK_DETECTOR_QUALITY", cfg.Detector.Quality)
	cfg.Detector.EnrollQuality = envFloat("FACETRACK_DETECTOR_ENROLL_QUALITY", cfg.Detector.EnrollQuality)

	cfg.Web.Host = envString("FACETRACK_WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("FACETRACK_WEB_PORT", cfg.Web.Port)

	return &cfg
}
