package recognizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/facetrack/internal/config"
)

// testHardwareIndex builds a hardware backend without the cascade classifier.
// Index operations never touch the detector as long as callers supply boxes,
// which is exactly how the engine drives it when a detection collaborator
// provides bounding boxes.
func testHardwareIndex() *HardwareBackend {
	return &HardwareBackend{
		graph: newFeatureGraph(),
		live:  make(map[int64]struct{}),
	}
}

func TestHardware_ConstructionFailsWithoutCascade(t *testing.T) {
	det := config.DetectorConfig{CascadeFile: filepath.Join(t.TempDir(), "missing")}
	if _, err := NewHardwareBackend(det); err == nil {
		t.Fatal("expected construction error for missing cascade model")
	}
}

func TestHardware_EnrollAndBestMatch(t *testing.T) {
	b := testHardwareIndex()

	frameA := testFrame(1, 64, 64)
	frameB := testFrame(9, 64, 64)

	featA, _, err := b.DetectAndExtract(frameA, frameA.Bounds())
	if err != nil {
		t.Fatalf("unexpected extract error: %v", err)
	}
	featB, _, err := b.DetectAndExtract(frameB, frameB.Bounds())
	if err != nil {
		t.Fatalf("unexpected extract error: %v", err)
	}

	labelA, _ := b.Enroll(featA)
	labelB, _ := b.Enroll(featB)
	if labelA == labelB {
		t.Fatalf("expected distinct labels, got %d twice", labelA)
	}
	if b.Count() != 2 {
		t.Fatalf("expected 2 live entries, got %d", b.Count())
	}

	got, confidence, ok := b.BestMatch(frameA, frameA.Bounds())
	if !ok || got != labelA {
		t.Fatalf("expected label %d, got %d (ok=%v)", labelA, got, ok)
	}
	if confidence < 0.99 {
		t.Errorf("expected near-perfect similarity for the enrolled frame, got %f", confidence)
	}
}

func TestHardware_UnenrollRemovesEntry(t *testing.T) {
	b := testHardwareIndex()

	frameA := testFrame(1, 64, 64)
	featA, _, _ := b.DetectAndExtract(frameA, frameA.Bounds())
	labelA, _ := b.Enroll(featA)

	if err := b.Unenroll(labelA); err != nil {
		t.Fatalf("unexpected unenroll error: %v", err)
	}

	if got, _, ok := b.BestMatch(frameA, frameA.Bounds()); ok && got == labelA {
		t.Error("expected deleted label filtered from matches")
	}
	if b.graph.Len() != 0 {
		t.Errorf("expected node removed from the index, got %d entries", b.graph.Len())
	}

	// A deleted label is never handed out again.
	featB, _, _ := b.DetectAndExtract(testFrame(2, 64, 64), testFrame(2, 64, 64).Bounds())
	labelB, _ := b.Enroll(featB)
	if labelB == labelA {
		t.Errorf("expected a fresh label, got %d twice", labelA)
	}
}

func TestHardware_DeleteAndReenrollCyclesStayMatchable(t *testing.T) {
	b := testHardwareIndex()

	frame := testFrame(1, 64, 64)
	feat, _, _ := b.DetectAndExtract(frame, frame.Bounds())

	// Many delete/re-register cycles of the same face must not degrade
	// matching: only the surviving entry may remain in the index.
	var label int64
	for i := 0; i < 20; i++ {
		label, _ = b.Enroll(feat)
		if i < 19 {
			b.Unenroll(label)
		}
	}

	if b.graph.Len() != 1 {
		t.Fatalf("expected 1 entry after delete cycles, got %d", b.graph.Len())
	}
	got, confidence, ok := b.BestMatch(frame, frame.Bounds())
	if !ok || got != label {
		t.Fatalf("expected label %d, got %d (ok=%v)", label, got, ok)
	}
	if confidence < 0.99 {
		t.Errorf("expected near-perfect similarity for the surviving entry, got %f", confidence)
	}
}

func TestHardware_ReconcilePrunesOrphans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizer.bin")

	b := testHardwareIndex()
	frame := testFrame(1, 64, 64)
	feat, _, _ := b.DetectAndExtract(frame, frame.Bounds())

	// A blob written before deletions lands on disk holds entries the
	// roster no longer knows about.
	var labels []int64
	for i := 0; i < 20; i++ {
		label, _ := b.Enroll(feat)
		labels = append(labels, label)
	}
	if err := b.Save(path); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	restored := testHardwareIndex()
	if err := restored.Load(path); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	keep := labels[len(labels)-1]
	restored.Reconcile([]int64{keep})

	if restored.graph.Len() != 1 {
		t.Fatalf("expected orphaned entries pruned down to 1, got %d", restored.graph.Len())
	}
	got, confidence, ok := restored.BestMatch(frame, frame.Bounds())
	if !ok || got != keep {
		t.Fatalf("expected label %d after reconcile, got %d (ok=%v)", keep, got, ok)
	}
	if confidence < 0.99 {
		t.Errorf("expected near-perfect similarity for the surviving entry, got %f", confidence)
	}

	// The counter moved past every label the pruned blob ever held.
	next, _ := restored.Enroll(feat)
	if next <= keep {
		t.Errorf("expected fresh label above %d, got %d", keep, next)
	}
}

func TestHardware_UpdateRecreatesEntry(t *testing.T) {
	b := testHardwareIndex()

	frame := testFrame(1, 64, 64)
	feat, _, _ := b.DetectAndExtract(frame, frame.Bounds())

	// Update on a label the index has never seen re-creates it, which is how
	// a person survives a lost blob after re-sampling.
	if err := b.Update(42, feat); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	got, _, ok := b.BestMatch(frame, frame.Bounds())
	if !ok || got != 42 {
		t.Fatalf("expected label 42 matched after upsert, got %d (ok=%v)", got, ok)
	}

	// The label counter moved past the upserted label.
	next, _ := b.Enroll(feat)
	if next <= 42 {
		t.Errorf("expected fresh label above 42, got %d", next)
	}
}

func TestHardware_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizer.bin")

	b := testHardwareIndex()
	frameA := testFrame(1, 64, 64)
	featA, _, _ := b.DetectAndExtract(frameA, frameA.Bounds())
	labelA, _ := b.Enroll(featA)

	if err := b.Save(path); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	restored := testHardwareIndex()
	if err := restored.Load(path); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	restored.Reconcile([]int64{labelA})

	got, confidence, ok := restored.BestMatch(frameA, frameA.Bounds())
	if !ok || got != labelA {
		t.Fatalf("expected label %d after reload, got %d (ok=%v)", labelA, got, ok)
	}
	if confidence < 0.99 {
		t.Errorf("expected near-perfect similarity after reload, got %f", confidence)
	}
}

func TestHardware_LoadMissingFileStartsEmpty(t *testing.T) {
	b := testHardwareIndex()
	if err := b.Load(filepath.Join(t.TempDir(), "missing.bin")); err != nil {
		t.Fatalf("expected clean start for missing blob, got %v", err)
	}
	if b.Count() != 0 {
		t.Errorf("expected empty index, got %d", b.Count())
	}
}

func TestHardware_ReconcileAdvancesLabels(t *testing.T) {
	b := testHardwareIndex()
	b.Reconcile([]int64{3, 7})

	if b.Count() != 2 {
		t.Fatalf("expected 2 live labels, got %d", b.Count())
	}

	frame := testFrame(1, 64, 64)
	feat, _, _ := b.DetectAndExtract(frame, frame.Bounds())
	label, _ := b.Enroll(feat)
	if label != 8 {
		t.Errorf("expected next label 8 after reconciling {3,7}, got %d", label)
	}
}

func TestHardware_Reset(t *testing.T) {
	b := testHardwareIndex()
	frame := testFrame(1, 64, 64)
	feat, _, _ := b.DetectAndExtract(frame, frame.Bounds())
	b.Enroll(feat)

	b.Reset()

	if b.Count() != 0 {
		t.Errorf("expected empty index after reset, got %d", b.Count())
	}
	label, _ := b.Enroll(feat)
	if label != 0 {
		t.Errorf("expected label counter restarted at 0, got %d", label)
	}
}

func TestSelectBackend_FallsBackWithoutModel(t *testing.T) {
	det := config.DetectorConfig{CascadeFile: filepath.Join(t.TempDir(), "missing")}
	backend := SelectBackend(det)
	if backend.Name() != "software-fallback" {
		t.Errorf("expected software-fallback without cascade model, got %s", backend.Name())
	}
}

func TestSelectBackend_PrefersHardware(t *testing.T) {
	// A real cascade file is required for the accelerated path; skip when
	// the development machine has not provisioned one.
	path := os.Getenv("FACETRACK_CASCADE_FILE")
	if path == "" {
		t.Skip("FACETRACK_CASCADE_FILE not set")
	}
	if _, err := os.Stat(path); err != nil {
		t.Skip("cascade model not present")
	}

	backend := SelectBackend(config.DetectorConfig{CascadeFile: path, MinSize: 60, MaxSize: 640, ShiftFactor: 0.1, ScaleFactor: 1.1})
	if backend.Name() != "hardware" {
		t.Errorf("expected hardware backend with cascade model, got %s", backend.Name())
	}
}
