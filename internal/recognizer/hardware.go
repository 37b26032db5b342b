package recognizer

import (
	"fmt"
	"image"
	"os"

	"github.com/coder/hnsw"
	pigo "github.com/esimov/pigo/core"

	"github.com/kozaktomas/facetrack/internal/config"
)

// HNSW graph parameters for the accelerated feature index.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswSearchK is how many nearest candidates a match query retrieves
	// before non-live labels are filtered out.
	hnswSearchK = 8
)

// HardwareBackend is the accelerated matching path: a cascade face detector
// for locating faces and an HNSW nearest-neighbor index over grid embeddings.
// Construction fails when the cascade model file is absent or unreadable,
// which is what routes a device without the model to the software fallback.
type HardwareBackend struct {
	classifier *pigo.Pigo
	det        config.DetectorConfig

	graph     *hnsw.Graph[int64]
	live      map[int64]struct{}
	nextLabel int64
}

// NewHardwareBackend loads the cascade model and prepares an empty index.
func NewHardwareBackend(det config.DetectorConfig) (*HardwareBackend, error) {
	cascade, err := os.ReadFile(det.CascadeFile)
	if err != nil {
		return nil, fmt.Errorf("reading cascade model: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade model: %w", err)
	}

	return &HardwareBackend{
		classifier: classifier,
		det:        det,
		graph:      newFeatureGraph(),
		live:       make(map[int64]struct{}),
	}, nil
}

// newFeatureGraph creates an HNSW graph with cosine distance.
func newFeatureGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

func (b *HardwareBackend) Name() string { return "hardware" }

// Count returns the number of live entries in the index.
func (b *HardwareBackend) Count() int { return len(b.live) }

// DetectAndExtract locates the most prominent face and derives its embedding,
// returning the region the embedding was taken from. Self-detection runs at
// the enrollment quality cutoff, which is tuned low so registration does not
// miss faces; acceptance gating happens in the engine.
func (b *HardwareBackend) DetectAndExtract(frame image.Image, box image.Rectangle) (Feature, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, ErrNoFaceDetected
	}
	if box.Empty() {
		found, ok := b.detectFace(frame, b.det.EnrollQuality)
		if !ok {
			return nil, image.Rectangle{}, ErrNoFaceDetected
		}
		box = found
	}
	feat := extractGridFeature(frame, box)
	if len(feat) == 0 {
		return nil, image.Rectangle{}, fmt.Errorf("%w: empty face region", ErrSampleExtraction)
	}
	return feat, box, nil
}

// detectFace runs the cascade over the frame and returns the highest-quality
// clustered detection at or above minQuality.
func (b *HardwareBackend) detectFace(frame image.Image, minQuality float64) (image.Rectangle, bool) {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return image.Rectangle{}, false
	}

	pixels := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := frame.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*width+x] = uint8((r*299 + g*587 + bl*114) / 1000 / 256)
		}
	}

	cParams := pigo.CascadeParams{
		MinSize:     b.det.MinSize,
		MaxSize:     b.det.MaxSize,
		ShiftFactor: b.det.ShiftFactor,
		ScaleFactor: b.det.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	dets := b.classifier.RunCascade(cParams, 0.0)
	dets = b.classifier.ClusterDetections(dets, b.det.ClusterIoU)

	best := image.Rectangle{}
	bestQ := minQuality
	found := false
	for _, det := range dets {
		if float64(det.Q) >= bestQ {
			x := det.Col - det.Scale/2
			y := det.Row - det.Scale/2
			best = image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+det.Scale, bounds.Min.Y+y+det.Scale)
			bestQ = float64(det.Q)
			found = true
		}
	}
	return best, found
}

// Enroll adds a feature under a fresh label. Labels are never handed out
// twice within one index generation, so a deleted entry cannot shadow a
// live person.
func (b *HardwareBackend) Enroll(feat Feature) (int64, error) {
	label := b.nextLabel
	b.nextLabel++
	b.graph.Add(hnsw.MakeNode(label, feat))
	b.live[label] = struct{}{}
	return label, nil
}

// Update replaces the feature stored for a label. Re-adding a label that the
// loaded index no longer holds re-creates it, which is how a person whose
// blob entry was lost becomes recognizable again after re-sampling.
func (b *HardwareBackend) Update(label int64, feat Feature) error {
	b.graph.Add(hnsw.MakeNode(label, feat))
	b.live[label] = struct{}{}
	if label >= b.nextLabel {
		b.nextLabel = label + 1
	}
	return nil
}

// Unenroll removes a label from the index. The label is never handed out
// again, so a deleted person cannot shadow a later enrollment.
func (b *HardwareBackend) Unenroll(label int64) error {
	b.graph.Delete(label)
	delete(b.live, label)
	return nil
}

// BestMatch finds the closest live entry to the most prominent face in the
// frame. Self-detection uses the recognition quality cutoff, stricter than
// the enrollment one.
func (b *HardwareBackend) BestMatch(frame image.Image, box image.Rectangle) (int64, float64, bool) {
	if frame == nil {
		return 0, 0, false
	}
	if box.Empty() {
		found, ok := b.detectFace(frame, b.det.Quality)
		if !ok {
			return 0, 0, false
		}
		box = found
	}
	if len(b.live) == 0 {
		return 0, 0, false
	}

	query := extractGridFeature(frame, box)
	neighbors := b.graph.Search(query, hnswSearchK)

	found := false
	var bestLabel int64
	bestSim := -1.0
	for _, node := range neighbors {
		if _, ok := b.live[node.Key]; !ok {
			continue
		}
		sim := similarityFromDistance(cosineDistance(query, node.Value))
		if sim > bestSim {
			bestLabel, bestSim, found = node.Key, sim, true
		}
	}
	if !found {
		return 0, 0, false
	}
	return bestLabel, bestSim, true
}

// Save exports the whole index to path as the opaque recognizer blob.
func (b *HardwareBackend) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating recognizer state file: %w", err)
	}
	defer f.Close()

	if err := b.graph.Export(f); err != nil {
		return fmt.Errorf("exporting feature index: %w", err)
	}
	return nil
}

// Load restores the index from path. A missing file yields an empty index;
// an undecodable one reports ErrPersistenceCorrupt and leaves the index
// empty. Liveness is re-established by Reconcile with the loaded roster.
func (b *HardwareBackend) Load(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("%w: importing feature index: %v", ErrPersistenceCorrupt, err)
	}

	g := saved.Graph
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	b.graph = g
	b.live = make(map[int64]struct{})
	return nil
}

// Reconcile rebuilds the index so it holds exactly the given labels and
// moves the label counter past them. Graph entries with no surviving label
// are dropped here, so deleted persons neither crowd the search window nor
// accumulate in the blob across restarts. A live label missing from the
// loaded graph stays absent until Update re-creates it from a new sample.
func (b *HardwareBackend) Reconcile(live []int64) {
	pruned := newFeatureGraph()
	b.live = make(map[int64]struct{}, len(live))
	for _, label := range live {
		if vec, ok := b.graph.Lookup(label); ok {
			pruned.Add(hnsw.MakeNode(label, vec))
		}
		b.live[label] = struct{}{}
		if label >= b.nextLabel {
			b.nextLabel = label + 1
		}
	}
	b.graph = pruned
}

// Reset drops the whole index and restarts the label counter.
func (b *HardwareBackend) Reset() {
	b.graph = newFeatureGraph()
	b.live = make(map[int64]struct{})
	b.nextLabel = 0
}
