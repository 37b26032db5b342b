package store

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/facetrack/internal/config"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	cfg := &config.Config{}
	cfg.Data.Dir = t.TempDir()
	cfg.Engine.ThumbSize = 160

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func TestLoadMetadataMissingFile(t *testing.T) {
	s := testStore(t)

	meta, err := s.LoadMetadata()
	if err != nil {
		t.Fatalf("failed to load missing metadata: %v", err)
	}
	if len(meta.Persons) != 0 {
		t.Errorf("expected empty persons, got %d", len(meta.Persons))
	}
	if meta.Persons == nil || meta.Samples == nil {
		t.Error("expected initialized maps in empty metadata")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := testStore(t)

	meta := NewMetadata()
	meta.Persons["person_01"] = PersonMeta{
		Name:         "Alice",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SampleCount:  2,
		BackendLabel: 1,
	}
	meta.Samples["person_01"] = []string{"sample_001.jpg", "sample_002.jpg"}
	meta.TargetPerson = "person_01"

	if err := s.SaveMetadata(meta); err != nil {
		t.Fatalf("failed to save metadata: %v", err)
	}
	if meta.SavedAt.IsZero() {
		t.Error("expected SavedAt to be stamped on save")
	}

	loaded, err := s.LoadMetadata()
	if err != nil {
		t.Fatalf("failed to load metadata: %v", err)
	}

	person, ok := loaded.Persons["person_01"]
	if !ok {
		t.Fatal("expected person_01 in loaded metadata")
	}
	if person.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", person.Name)
	}
	if person.SampleCount != 2 {
		t.Errorf("expected 2 samples, got %d", person.SampleCount)
	}
	if person.BackendLabel != 1 {
		t.Errorf("expected backend label 1, got %d", person.BackendLabel)
	}
	if got := loaded.Samples["person_01"]; len(got) != 2 || got[0] != "sample_001.jpg" {
		t.Errorf("unexpected sample list: %v", got)
	}
	if loaded.TargetPerson != "person_01" {
		t.Errorf("expected target person_01, got %q", loaded.TargetPerson)
	}
}

func TestLoadMetadataCorrupt(t *testing.T) {
	s := testStore(t)

	if err := os.WriteFile(s.metaPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt metadata: %v", err)
	}

	_, err := s.LoadMetadata()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestSaveMetadataLeavesNoTempFiles(t *testing.T) {
	s := testStore(t)

	if err := s.SaveMetadata(NewMetadata()); err != nil {
		t.Fatalf("failed to save metadata: %v", err)
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		t.Fatalf("failed to list data dir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestWriteThumbnail(t *testing.T) {
	s := testStore(t)

	frame := testFrame(640, 480)
	box := image.Rect(100, 100, 420, 420)

	filename, err := s.WriteThumbnail("person_01", 1, frame, box)
	if err != nil {
		t.Fatalf("failed to write thumbnail: %v", err)
	}
	if filename != "sample_001.jpg" {
		t.Errorf("expected sample_001.jpg, got %q", filename)
	}

	f, err := os.Open(s.ThumbnailPath("person_01", filename))
	if err != nil {
		t.Fatalf("failed to open thumbnail: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode thumbnail: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > 160 || bounds.Dy() > 160 {
		t.Errorf("thumbnail exceeds max size: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestWriteThumbnailEmptyBoxUsesWholeFrame(t *testing.T) {
	s := testStore(t)

	frame := testFrame(320, 240)
	filename, err := s.WriteThumbnail("person_01", 2, frame, image.Rectangle{})
	if err != nil {
		t.Fatalf("failed to write thumbnail: %v", err)
	}

	f, err := os.Open(s.ThumbnailPath("person_01", filename))
	if err != nil {
		t.Fatalf("failed to open thumbnail: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode thumbnail: %v", err)
	}
	// Longest edge 320 scales to 160; aspect ratio is preserved.
	if got := img.Bounds().Dx(); got != 160 {
		t.Errorf("expected width 160, got %d", got)
	}
	if got := img.Bounds().Dy(); got != 120 {
		t.Errorf("expected height 120, got %d", got)
	}
}

func TestWriteThumbnailSmallRegionUnscaled(t *testing.T) {
	s := testStore(t)

	frame := testFrame(640, 480)
	box := image.Rect(10, 10, 90, 90)

	filename, err := s.WriteThumbnail("person_01", 3, frame, box)
	if err != nil {
		t.Fatalf("failed to write thumbnail: %v", err)
	}

	f, err := os.Open(s.ThumbnailPath("person_01", filename))
	if err != nil {
		t.Fatalf("failed to open thumbnail: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode thumbnail: %v", err)
	}
	if got := img.Bounds().Dx(); got != 80 {
		t.Errorf("expected width 80, got %d", got)
	}
}

func TestRemovePerson(t *testing.T) {
	s := testStore(t)

	frame := testFrame(320, 240)
	if _, err := s.WriteThumbnail("person_01", 1, frame, image.Rectangle{}); err != nil {
		t.Fatalf("failed to write thumbnail: %v", err)
	}
	if _, err := s.WriteThumbnail("person_02", 1, frame, image.Rectangle{}); err != nil {
		t.Fatalf("failed to write thumbnail: %v", err)
	}

	if err := s.RemovePerson("person_01"); err != nil {
		t.Fatalf("failed to remove person: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.facesDir, "person_01")); !os.IsNotExist(err) {
		t.Error("expected person_01 directory to be removed")
	}
	if _, err := os.Stat(filepath.Join(s.facesDir, "person_02")); err != nil {
		t.Errorf("expected person_02 directory to survive: %v", err)
	}
}

func TestRemovePersonMissingDirectory(t *testing.T) {
	s := testStore(t)

	if err := s.RemovePerson("person_99"); err != nil {
		t.Errorf("expected removing missing person to succeed, got %v", err)
	}
}

func TestRemoveAllThumbnails(t *testing.T) {
	s := testStore(t)

	frame := testFrame(320, 240)
	for _, id := range []string{"person_01", "person_02", "person_03"} {
		if _, err := s.WriteThumbnail(id, 1, frame, image.Rectangle{}); err != nil {
			t.Fatalf("failed to write thumbnail for %s: %v", id, err)
		}
	}

	if err := s.RemoveAllThumbnails(); err != nil {
		t.Fatalf("failed to remove thumbnails: %v", err)
	}

	entries, err := os.ReadDir(s.facesDir)
	if err != nil {
		t.Fatalf("expected faces directory to survive: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty faces directory, got %d entries", len(entries))
	}
}
