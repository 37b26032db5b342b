package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ProfileDefaults(t *testing.T) {
	os.Unsetenv("FACETRACK_MAX_PERSONS")
	os.Unsetenv("FACETRACK_SIMILARITY_THRESHOLD")

	cfg := Load()

	if cfg.Engine.MaxPersons != 3 {
		t.Errorf("expected default max_persons 3, got %d", cfg.Engine.MaxPersons)
	}

	if cfg.Engine.SimilarityThreshold != 0.70 {
		t.Errorf("expected default similarity_threshold 0.70, got %f", cfg.Engine.SimilarityThreshold)
	}

	if cfg.Engine.TargetSamples != 5 {
		t.Errorf("expected default target_samples 5, got %d", cfg.Engine.TargetSamples)
	}

	if cfg.Detector.ScaleFactor != 1.1 {
		t.Errorf("expected default scale_factor 1.1, got %f", cfg.Detector.ScaleFactor)
	}

	if cfg.Web.Port != 8088 {
		t.Errorf("expected default web port 8088, got %d", cfg.Web.Port)
	}
}

func TestLoad_CustomMaxPersons(t *testing.T) {
	t.Setenv("FACETRACK_MAX_PERSONS", "10")

	cfg := Load()

	if cfg.Engine.MaxPersons != 10 {
		t.Errorf("expected max_persons 10, got %d", cfg.Engine.MaxPersons)
	}
}

func TestLoad_InvalidMaxPersons(t *testing.T) {
	t.Setenv("FACETRACK_MAX_PERSONS", "invalid")

	cfg := Load()

	// Should fall back to the profile default
	if cfg.Engine.MaxPersons != 3 {
		t.Errorf("expected default max_persons 3 for invalid input, got %d", cfg.Engine.MaxPersons)
	}
}

func TestLoad_NegativeMaxPersons(t *testing.T) {
	t.Setenv("FACETRACK_MAX_PERSONS", "-2")

	cfg := Load()

	// Negative is invalid, should fall back to the profile default
	if cfg.Engine.MaxPersons != 3 {
		t.Errorf("expected default max_persons 3 for negative input, got %d", cfg.Engine.MaxPersons)
	}
}

func TestLoad_CustomThreshold(t *testing.T) {
	t.Setenv("FACETRACK_SIMILARITY_THRESHOLD", "0.55")

	cfg := Load()

	if cfg.Engine.SimilarityThreshold != 0.55 {
		t.Errorf("expected similarity_threshold 0.55, got %f", cfg.Engine.SimilarityThreshold)
	}
}

func TestLoad_DataDir(t *testing.T) {
	t.Setenv("FACETRACK_DATA_DIR", "/mnt/flash")

	cfg := Load()

	if cfg.Data.Dir != "/mnt/flash" {
		t.Errorf("expected data dir '/mnt/flash', got '%s'", cfg.Data.Dir)
	}

	expected := filepath.Join("/mnt/flash", "persons.json")
	if cfg.Data.MetadataFile() != expected {
		t.Errorf("expected metadata file '%s', got '%s'", expected, cfg.Data.MetadataFile())
	}

	expected = filepath.Join("/mnt/flash", "recognizer.bin")
	if cfg.Data.BlobFile() != expected {
		t.Errorf("expected blob file '%s', got '%s'", expected, cfg.Data.BlobFile())
	}
}

func TestLoad_DefaultCascadeFile(t *testing.T) {
	t.Setenv("FACETRACK_DATA_DIR", "/mnt/flash")
	os.Unsetenv("FACETRACK_CASCADE_FILE")

	cfg := Load()

	expected := filepath.Join("/mnt/flash", "models", "facefinder")
	if cfg.Detector.CascadeFile != expected {
		t.Errorf("expected cascade file '%s', got '%s'", expected, cfg.Detector.CascadeFile)
	}
}

func TestLoad_CustomCascadeFile(t *testing.T) {
	t.Setenv("FACETRACK_CASCADE_FILE", "/opt/models/facefinder")

	cfg := Load()

	if cfg.Detector.CascadeFile != "/opt/models/facefinder" {
		t.Errorf("expected cascade file '/opt/models/facefinder', got '%s'", cfg.Detector.CascadeFile)
	}
}

func TestLoad_EnrollQualityBelowRecognitionQuality(t *testing.T) {
	os.Unsetenv("FACETRACK_DETECTOR_QUALITY")
	os.Unsetenv("FACETRACK_DETECTOR_ENROLL_QUALITY")

	cfg := Load()

	// Enrollment must detect more aggressively than recognition
	if cfg.Detector.EnrollQuality >= cfg.Detector.Quality {
		t.Errorf("expected enroll_quality (%f) below quality (%f)",
			cfg.Detector.EnrollQuality, cfg.Detector.Quality)
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("FACETRACK_WEB_HOST", "127.0.0.1")
	t.Setenv("FACETRACK_WEB_PORT", "9000")

	cfg := Load()

	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("expected web host '127.0.0.1', got '%s'", cfg.Web.Host)
	}

	if cfg.Web.Port != 9000 {
		t.Errorf("expected web port 9000, got %d", cfg.Web.Port)
	}
}
