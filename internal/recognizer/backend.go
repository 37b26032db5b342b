package recognizer

import (
	"image"
	"log"

	"github.com/kozaktomas/facetrack/internal/config"
)

// Backend turns a face region into a comparable feature and matches features
// against its internal index. Labels are backend-internal; the roster stores
// them but never interprets them. Exactly one backend instance is active per
// engine, chosen once at construction.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Count returns the number of live index entries.
	Count() int

	// DetectAndExtract derives a feature for the face in box, self-detecting
	// when box is empty. Returns the region the feature was taken from.
	DetectAndExtract(frame image.Image, box image.Rectangle) (Feature, image.Rectangle, error)

	// Enroll stores a feature under a fresh label.
	Enroll(feat Feature) (int64, error)

	// Update replaces the feature stored for an existing label, re-creating
	// the entry when it is absent.
	Update(label int64, feat Feature) error

	// Unenroll removes a label. Labels of other entries stay stable.
	Unenroll(label int64) error

	// BestMatch returns the closest live label to the face in the frame with
	// its similarity, or false when no face or no candidate was found.
	BestMatch(frame image.Image, box image.Rectangle) (int64, float64, bool)

	// Save and Load snapshot/restore the whole index state.
	Save(path string) error
	Load(path string) error

	// Reconcile prunes labels outside the given set and moves the label
	// counter past every label in it.
	Reconcile(live []int64)

	// Reset drops the whole index and restarts the label counter.
	Reset()
}

// SelectBackend picks the matching backend for this device: the accelerated
// path when its detector model is present, the software fallback otherwise.
// The outcome is logged so a device silently running the placeholder matcher
// is visible in the boot log.
func SelectBackend(det config.DetectorConfig) Backend {
	hw, err := NewHardwareBackend(det)
	if err != nil {
		log.Printf("hardware backend unavailable: %v; using software fallback matcher", err)
		return NewFallbackBackend()
	}
	log.Printf("hardware backend ready (cascade model %s)", det.CascadeFile)
	return hw
}
