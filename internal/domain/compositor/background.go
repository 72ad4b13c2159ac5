package compositor

import (
	"image"
	"math"
)

// coverRect scales an image of size (w, h) to cover the canvas and centres
// it; the overflow on one axis falls outside the canvas and is cropped.
func coverRect(w, h, canvasW, canvasH int) image.Rectangle {
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, canvasW, canvasH)
	}
	scale := math.Max(float64(canvasW)/float64(w), float64(canvasH)/float64(h))
	sw := float64(w) * scale
	sh := float64(h) * scale
	x := float64(canvasW)/2 - sw/2
	y := float64(canvasH)/2 - sh/2
	return image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+sw)),
		int(math.Round(y+sh)),
	)
}
