package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facetrack/internal/config"
)

// ErrCorrupt is returned when the metadata file exists but cannot be decoded.
// Unlike the recognizer blob, corrupt metadata is never auto-recovered: the
// caller decides whether to abort or wipe.
var ErrCorrupt = errors.New("person metadata corrupt")

// PersonMeta is the persisted description of one enrolled person.
type PersonMeta struct {
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	SampleCount  int       `json:"sample_count"`
	BackendLabel int64     `json:"backend_label"`
}

// Metadata is the structured half of the persisted engine state. The other
// half is the recognizer blob, which only the active backend interprets.
type Metadata struct {
	Persons      map[string]PersonMeta `json:"persons"`
	Samples      map[string][]string   `json:"samples"`
	TargetPerson string                `json:"target_person,omitempty"`
	SavedAt      time.Time             `json:"saved_at"`
}

// NewMetadata returns an empty metadata document with initialized maps.
func NewMetadata() *Metadata {
	return &Metadata{
		Persons: make(map[string]PersonMeta),
		Samples: make(map[string][]string),
	}
}

// Store keeps the engine's durable state on flash: the metadata JSON, the
// opaque recognizer blob and per-person sample thumbnails. All writes go
// through a temp file plus rename so a crash mid-write leaves the previous
// state intact.
type Store struct {
	dataDir   string
	metaPath  string
	blobPath  string
	facesDir  string
	thumbSize int
}

func New(cfg *config.Config) (*Store, error) {
	s := &Store{
		dataDir:   cfg.Data.Dir,
		metaPath:  cfg.Data.MetadataFile(),
		blobPath:  cfg.Data.BlobFile(),
		facesDir:  cfg.Data.FacesDir(),
		thumbSize: cfg.Engine.ThumbSize,
	}
	if err := os.MkdirAll(s.facesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating faces directory: %w", err)
	}
	return s, nil
}

// BlobPath is where the active backend persists its recognizer state.
func (s *Store) BlobPath() string {
	return s.blobPath
}

// LoadMetadata reads the metadata file. A missing file yields an empty
// document; an undecodable one reports ErrCorrupt.
func (s *Store) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(s.metaPath)
	if os.IsNotExist(err) {
		return NewMetadata(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if meta.Persons == nil {
		meta.Persons = make(map[string]PersonMeta)
	}
	if meta.Samples == nil {
		meta.Samples = make(map[string][]string)
	}
	return &meta, nil
}

// SaveMetadata writes the metadata file atomically.
func (s *Store) SaveMetadata(meta *Metadata) error {
	meta.SavedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return s.writeAtomic(s.metaPath, data)
}

// writeAtomic writes data to a uniquely named temp file next to path and
// renames it into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RemovePerson deletes the thumbnail directory of one person.
func (s *Store) RemovePerson(personID string) error {
	return os.RemoveAll(filepath.Join(s.facesDir, personID))
}

// RemoveAllThumbnails wipes every stored thumbnail, keeping the faces
// directory itself in place.
func (s *Store) RemoveAllThumbnails() error {
	entries, err := os.ReadDir(s.facesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing faces directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.facesDir, entry.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// ThumbnailPath resolves a stored sample filename for a person.
func (s *Store) ThumbnailPath(personID, filename string) string {
	return filepath.Join(s.facesDir, personID, filename)
}
