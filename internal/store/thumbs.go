package store

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const thumbJPEGQuality = 85

// WriteThumbnail crops the sample region out of the frame, scales it down and
// stores it as <faces>/<person>/sample_NNN.jpg. An empty or out-of-frame box
// falls back to the whole frame. The filename is returned even when the write
// fails, so callers can keep their sample bookkeeping consistent with the
// sample count. Thumbnails are display-only and are never read back for
// matching.
func (s *Store) WriteThumbnail(personID string, sampleIndex int, frame image.Image, box image.Rectangle) (string, error) {
	filename := fmt.Sprintf("sample_%03d.jpg", sampleIndex)

	dir := filepath.Join(s.facesDir, personID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return filename, fmt.Errorf("creating person directory: %w", err)
	}

	region := frame
	if !box.Empty() {
		if clipped := box.Intersect(frame.Bounds()); !clipped.Empty() {
			out := image.NewRGBA(image.Rect(0, 0, clipped.Dx(), clipped.Dy()))
			draw.Draw(out, out.Bounds(), frame, clipped.Min, draw.Src)
			region = out
		}
	}

	thumb := scaleToFit(region, s.thumbSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
		return filename, fmt.Errorf("encoding thumbnail: %w", err)
	}

	if err := s.writeAtomic(filepath.Join(dir, filename), buf.Bytes()); err != nil {
		return filename, err
	}
	return filename, nil
}

// scaleToFit resizes an image so its longer edge is maxSize, keeping the
// aspect ratio. Smaller images pass through unscaled.
func scaleToFit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		newHeight = maxSize
		newWidth = width * maxSize / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
