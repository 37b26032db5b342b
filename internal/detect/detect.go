package detect

import (
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/kozaktomas/facetrack/internal/config"
)

// Kind tags what a detection covers.
type Kind int

const (
	KindFace Kind = iota
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindFace:
		return "face"
	case KindBody:
		return "body"
	default:
		return "unknown"
	}
}

// Detection is one located region in frame pixel coordinates.
type Detection struct {
	Kind       Kind            `json:"kind"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// Detector locates faces and derived upper-body regions in frames. It feeds
// the capture loop and the console; the recognition engine never depends on
// it and does its own detection through the active backend.
type Detector struct {
	classifier *pigo.Pigo
	cfg        config.DetectorConfig
}

func New(cfg config.DetectorConfig) (*Detector, error) {
	cascade, err := os.ReadFile(cfg.CascadeFile)
	if err != nil {
		return nil, fmt.Errorf("reading cascade model: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade model: %w", err)
	}
	return &Detector{classifier: classifier, cfg: cfg}, nil
}

// DetectFaces returns up to MaxDetections face regions at or above the
// recognition quality cutoff, best first. Overlapping regions are suppressed
// by IoU, keeping the higher-quality one.
func (d *Detector) DetectFaces(frame image.Image) []Detection {
	if frame == nil {
		return nil
	}

	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	pixels := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := frame.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*width+x] = uint8((r*299 + g*587 + b*114) / 1000 / 256)
		}
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	raw := d.classifier.RunCascade(cParams, 0.0)
	raw = d.classifier.ClusterDetections(raw, d.cfg.ClusterIoU)

	detections := make([]Detection, 0, len(raw))
	for _, det := range raw {
		if float64(det.Q) < d.cfg.Quality {
			continue
		}
		x := bounds.Min.X + det.Col - det.Scale/2
		y := bounds.Min.Y + det.Row - det.Scale/2
		detections = append(detections, Detection{
			Kind:       KindFace,
			Box:        image.Rect(x, y, x+det.Scale, y+det.Scale),
			Confidence: float64(det.Q),
		})
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})
	detections = suppressOverlaps(detections, d.cfg.ClusterIoU)

	if len(detections) > d.cfg.MaxDetections {
		detections = detections[:d.cfg.MaxDetections]
	}
	return detections
}

// DetectBodies derives upper-body regions from face detections by torso
// expansion. Regions whose clamped aspect ratio falls outside the plausible
// torso range are dropped.
func (d *Detector) DetectBodies(frame image.Image) []Detection {
	faces := d.DetectFaces(frame)
	if len(faces) == 0 {
		return nil
	}

	bodies := make([]Detection, 0, len(faces))
	for _, face := range faces {
		torso, ok := faceToTorso(face.Box, frame.Bounds())
		if !ok {
			continue
		}
		bodies = append(bodies, Detection{
			Kind:       KindBody,
			Box:        torso,
			Confidence: face.Confidence,
		})
	}
	return suppressOverlaps(bodies, d.cfg.ClusterIoU)
}
