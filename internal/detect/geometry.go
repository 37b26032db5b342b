package detect

import "image"

// Torso expansion factors: an upper-body box is the face box widened and
// lengthened, clamped to the frame. Regions whose height/width ratio ends up
// outside [torsoRatioMin, torsoRatioMax] after clamping are not plausible
// torsos (usually a face at the frame edge) and are rejected.
const (
	torsoWidthFactor  = 1.5
	torsoHeightFactor = 2.5
	torsoRatioMin     = 1.2
	torsoRatioMax     = 2.5
)

// IoU calculates Intersection over Union between two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()) + float64(b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// suppressOverlaps drops any detection overlapping an earlier (higher
// confidence) one by more than maxIoU. Input must be sorted best first.
func suppressOverlaps(detections []Detection, maxIoU float64) []Detection {
	kept := detections[:0]
	for _, det := range detections {
		overlaps := false
		for _, k := range kept {
			if IoU(det.Box, k.Box) > maxIoU {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, det)
		}
	}
	return kept
}

// faceToTorso expands a face box into an upper-body box: centered on the face
// horizontally, starting at the face top, clamped to the frame.
func faceToTorso(face, frame image.Rectangle) (image.Rectangle, bool) {
	w := int(float64(face.Dx()) * torsoWidthFactor)
	h := int(float64(face.Dy()) * torsoHeightFactor)
	cx := face.Min.X + face.Dx()/2

	torso := image.Rect(cx-w/2, face.Min.Y, cx-w/2+w, face.Min.Y+h).Intersect(frame)
	if torso.Empty() || torso.Dx() == 0 {
		return image.Rectangle{}, false
	}

	ratio := float64(torso.Dy()) / float64(torso.Dx())
	if ratio < torsoRatioMin || ratio > torsoRatioMax {
		return image.Rectangle{}, false
	}
	return torso, true
}
