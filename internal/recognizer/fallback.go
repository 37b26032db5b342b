package recognizer

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
)

const (
	// fallbackRegionSize is the square size a face region is re-encoded at
	// before the descriptor is derived from the encoded bytes.
	fallbackRegionSize  = 64
	fallbackJPEGQuality = 85

	// fallbackDims is the descriptor length: 16 digest bins + 4 length bins
	// + 12 sampled-content bins.
	fallbackDims = 32

	// fallbackGamma steepens the distance-to-similarity mapping so that any
	// byte-level difference drops the score well below typical thresholds.
	fallbackGamma = 8.0
)

// FallbackBackend matches faces without an accelerator. It derives a
// histogram-like descriptor from the JPEG encoding of the face region and
// compares descriptors with a chi-square distance.
//
// The descriptor is deterministic and comparable but carries no facial
// geometry: the same buffer always matches itself with similarity 1, while
// any other buffer scores near 0. It is a functional placeholder that keeps
// enrollment and recognition flows exercisable on hardware without the
// accelerated detector, not a biometric algorithm.
type FallbackBackend struct {
	features  map[int64]Feature
	nextLabel int64
}

func NewFallbackBackend() *FallbackBackend {
	return &FallbackBackend{features: make(map[int64]Feature)}
}

func (b *FallbackBackend) Name() string { return "software-fallback" }

// Count returns the number of enrolled entries.
func (b *FallbackBackend) Count() int { return len(b.features) }

// DetectAndExtract derives a feature for the supplied bounding box. The
// fallback has no detector of its own, so a missing box is a detection miss.
func (b *FallbackBackend) DetectAndExtract(frame image.Image, box image.Rectangle) (Feature, image.Rectangle, error) {
	if frame == nil || box.Empty() {
		return nil, image.Rectangle{}, ErrNoFaceDetected
	}
	buf, err := encodeRegion(frame, box)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("%w: %v", ErrSampleExtraction, err)
	}
	return pseudoFeature(buf), box, nil
}

// encodeRegion crops the box, scales it to a fixed size and JPEG-encodes it,
// producing the byte buffer the descriptor is derived from.
func encodeRegion(frame image.Image, box image.Rectangle) ([]byte, error) {
	region := resizeImage(cropFrame(frame, box), fallbackRegionSize, fallbackRegionSize)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, region, &jpeg.Options{Quality: fallbackJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pseudoFeature derives the fixed-length descriptor from an encoded buffer.
// Bin layout, before normalizing every bin by the vector sum:
//
//	0..15   the first 16 bytes of the SHA-256 digest of the buffer
//	16..19  the buffer length as little-endian uint32 bytes
//	20..31  content bytes sampled at offsets i*len/12 for i = 0..11
//
// Identical buffers produce identical descriptors (chi-square distance 0);
// the digest bins make any difference dominate the distance.
func pseudoFeature(buf []byte) Feature {
	vec := make(Feature, fallbackDims)

	digest := sha256.Sum256(buf)
	for i := 0; i < 16; i++ {
		vec[i] = float32(digest[i])
	}

	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(buf)))
	for i := 0; i < 4; i++ {
		vec[16+i] = float32(lenBytes[i])
	}

	if len(buf) > 0 {
		for i := 0; i < 12; i++ {
			vec[20+i] = float32(buf[i*len(buf)/12])
		}
	}

	var sum float32
	for _, v := range vec {
		sum += v
	}
	if sum > 0 {
		for i := range vec {
			vec[i] /= sum
		}
	}
	return vec
}

// fallbackSimilarity maps a chi-square distance to the 0..1 confidence scale.
func fallbackSimilarity(d float64) float64 {
	return math.Exp(-fallbackGamma * d)
}

// Enroll stores a feature under a fresh label.
func (b *FallbackBackend) Enroll(feat Feature) (int64, error) {
	label := b.nextLabel
	b.nextLabel++
	b.features[label] = feat
	return label, nil
}

// Update replaces the feature stored for a label, re-creating the entry when
// it was lost with the recognizer blob.
func (b *FallbackBackend) Update(label int64, feat Feature) error {
	b.features[label] = feat
	if label >= b.nextLabel {
		b.nextLabel = label + 1
	}
	return nil
}

// Unenroll drops a label. Removing an already absent label is a no-op so a
// person whose blob entry was lost can still be deleted.
func (b *FallbackBackend) Unenroll(label int64) error {
	delete(b.features, label)
	return nil
}

// BestMatch returns the enrolled label closest to the face in the supplied
// box, with its similarity. A missing box or extraction failure is a miss.
func (b *FallbackBackend) BestMatch(frame image.Image, box image.Rectangle) (int64, float64, bool) {
	feat, _, err := b.DetectAndExtract(frame, box)
	if err != nil {
		return 0, 0, false
	}

	found := false
	var bestLabel int64
	bestSim := -1.0
	for label, stored := range b.features {
		sim := fallbackSimilarity(chiSquareDistance(feat, stored))
		if sim > bestSim {
			bestLabel, bestSim, found = label, sim, true
		}
	}
	if !found {
		return 0, 0, false
	}
	return bestLabel, bestSim, true
}

// fallbackState is the gob-encoded recognizer blob of the fallback backend.
type fallbackState struct {
	Features  map[int64]Feature
	NextLabel int64
}

// Save snapshots the whole backend state to path.
func (b *FallbackBackend) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating recognizer state file: %w", err)
	}
	defer f.Close()

	state := fallbackState{Features: b.features, NextLabel: b.nextLabel}
	if err := gob.NewEncoder(f).Encode(state); err != nil {
		return fmt.Errorf("encoding recognizer state: %w", err)
	}
	return nil
}

// Load restores the backend state from path. A missing file yields an empty
// backend; an undecodable one reports ErrPersistenceCorrupt and leaves the
// backend empty.
func (b *FallbackBackend) Load(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening recognizer state: %w", err)
	}
	defer f.Close()

	var state fallbackState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("%w: decoding recognizer state: %v", ErrPersistenceCorrupt, err)
	}
	if state.Features == nil {
		state.Features = make(map[int64]Feature)
	}
	b.features = state.Features
	b.nextLabel = state.NextLabel
	for label := range b.features {
		if label >= b.nextLabel {
			b.nextLabel = label + 1
		}
	}
	return nil
}

// Reconcile prunes entries that no live record references and moves the
// label counter past every live label.
func (b *FallbackBackend) Reconcile(live []int64) {
	keep := make(map[int64]struct{}, len(live))
	for _, label := range live {
		keep[label] = struct{}{}
		if label >= b.nextLabel {
			b.nextLabel = label + 1
		}
	}
	for label := range b.features {
		if _, ok := keep[label]; !ok {
			delete(b.features, label)
		}
	}
}

// Reset drops every entry and restarts the label counter.
func (b *FallbackBackend) Reset() {
	b.features = make(map[int64]Feature)
	b.nextLabel = 0
}
