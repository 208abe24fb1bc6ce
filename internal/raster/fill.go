package raster

import (
	"image"
	"math"

	"github.com/KyamichProjects/copaint/internal/domain"
)

// floodFill repaints the 4-connected region around the seed whose pixels
// exactly match the seed pixel's original color, using an explicit work
// stack so memory is bounded by the region size rather than call-stack
// depth. A pixel is eligible only on an exact match of all channels, so
// fill can leak through visually-closed but not pixel-closed outlines;
// that mirrors how the exact-match rule behaves around anti-aliased edges
// and is expected, not a defect. When the seed pixel already has the
// target color the operation is a guaranteed no-op, which is also what
// makes a duplicated fill action harmless.
func floodFill(img *image.RGBA, f domain.FillPayload) {
	b := img.Bounds()
	seed := image.Pt(int(math.Floor(f.Seed.X)), int(math.Floor(f.Seed.Y)))
	if !seed.In(b) {
		return
	}

	target := ParseColor(f.Color)
	origin := img.RGBAAt(seed.X, seed.Y)
	if origin == target {
		return
	}

	stack := []image.Point{seed}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !p.In(b) || img.RGBAAt(p.X, p.Y) != origin {
			continue
		}
		img.SetRGBA(p.X, p.Y, target)
		stack = append(stack,
			image.Pt(p.X+1, p.Y),
			image.Pt(p.X-1, p.Y),
			image.Pt(p.X, p.Y+1),
			image.Pt(p.X, p.Y-1),
		)
	}
}
