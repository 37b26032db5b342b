package recognizer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Feature is an opaque face descriptor produced by a backend. Values are
// only comparable within the backend that produced them.
type Feature []float32

// cosineDistance computes the cosine distance between two features.
// Returns a value between 0 (identical) and 2 (opposite).
func cosineDistance(a, b Feature) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// similarityFromDistance maps a cosine distance onto the engine's 0..1
// confidence scale. Identical features score 1, opposite features 0.
func similarityFromDistance(d float64) float64 {
	return 1 - d/2
}

// chiSquareDistance computes a chi-square style distance between two
// histogram-like vectors. Bins where both sides are zero are skipped.
func chiSquareDistance(a, b Feature) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var d float64
	for i := range a {
		sum := float64(a[i]) + float64(b[i])
		if sum == 0 {
			continue
		}
		diff := float64(a[i]) - float64(b[i])
		d += diff * diff / sum
	}
	return d
}

// cropFrame extracts the region of frame covered by box. An empty box, or a
// box that does not intersect the frame, yields the whole frame.
func cropFrame(frame image.Image, box image.Rectangle) image.Image {
	if box.Empty() {
		return frame
	}
	box = box.Intersect(frame.Bounds())
	if box.Empty() {
		return frame
	}
	out := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(out, out.Bounds(), frame, box.Min, draw.Src)
	return out
}

// resizeImage scales an image to the given dimensions using bilinear interpolation.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// featureGrid is the square grid the accelerated backend samples a face
// region into. 16x16 grayscale cells give a 256-dim embedding.
const featureGrid = 16

// extractGridFeature derives the accelerated backend's embedding from a face
// region: grayscale intensities on a fixed grid, zero-meaned so that cosine
// similarity behaves like correlation rather than rewarding overall
// brightness, then L2-normalized.
func extractGridFeature(frame image.Image, box image.Rectangle) Feature {
	region := cropFrame(frame, box)
	small := resizeImage(region, featureGrid, featureGrid)

	vec := make(Feature, featureGrid*featureGrid)
	var mean float64
	for y := 0; y < featureGrid; y++ {
		for x := 0; x < featureGrid; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			gray := float64(r*299+g*587+b*114) / 1000 / 256
			vec[y*featureGrid+x] = float32(gray)
			mean += gray
		}
	}
	mean /= float64(len(vec))

	var norm float64
	for i := range vec {
		vec[i] -= float32(mean)
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
