// Package raster deterministically reconstructs a pixel buffer from an
// ordered log of drawing actions. Rendering is pure and uses opaque
// replacement only: painting never alpha-blends, so applying the same
// action twice yields the same buffer as applying it once. That invariant
// is what makes at-least-once delivery (including self-echo of a member's
// own actions) safe for every client.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/KyamichProjects/copaint/internal/domain"
)

// Background is the blank canvas color used for a fresh buffer and by
// clear actions.
var Background = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Reconstruct replays history in order onto a fresh width x height canvas.
// A clear resets the buffer to blank without discarding later entries; all
// other actions paint onto the current buffer. Two evaluations of the same
// history produce byte-identical buffers.
func Reconstruct(history []domain.Action, width, height int) *image.RGBA {
	img := NewCanvas(width, height)
	for i := range history {
		Apply(img, history[i])
	}
	return img
}

// NewCanvas allocates a blank canvas.
func NewCanvas(width, height int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	clearBuffer(img)
	return img
}

// Apply paints one action onto img.
func Apply(img *image.RGBA, a domain.Action) {
	switch a.Type {
	case domain.ActionClear:
		clearBuffer(img)
	case domain.ActionStroke:
		if a.Stroke != nil {
			drawStroke(img, *a.Stroke)
		}
	case domain.ActionShape:
		if a.Shape != nil {
			drawShape(img, *a.Shape)
		}
	case domain.ActionFill:
		if a.Fill != nil {
			floodFill(img, *a.Fill)
		}
	}
}

func clearBuffer(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, Background)
		}
	}
}

// drawStroke connects consecutive points with round-capped, round-joined
// segments. A stroke with fewer than two points renders nothing: a
// stationary tap produces no durable mark.
func drawStroke(img *image.RGBA, s domain.StrokePayload) {
	if len(s.Points) < 2 {
		return
	}
	col := ParseColor(s.Color)
	if s.Kind == domain.StrokeErase {
		col = Background
	}
	for i := 1; i < len(s.Points); i++ {
		paintSegment(img, s.Points[i-1], s.Points[i], col, s.Width)
	}
}

func drawShape(img *image.RGBA, s domain.ShapePayload) {
	col := ParseColor(s.Color)
	switch s.Kind {
	case domain.ShapeRectangle:
		x0, x1 := math.Min(s.Start.X, s.End.X), math.Max(s.Start.X, s.End.X)
		y0, y1 := math.Min(s.Start.Y, s.End.Y), math.Max(s.Start.Y, s.End.Y)
		tl := domain.Point{X: x0, Y: y0}
		tr := domain.Point{X: x1, Y: y0}
		br := domain.Point{X: x1, Y: y1}
		bl := domain.Point{X: x0, Y: y1}
		paintSegment(img, tl, tr, col, s.Width)
		paintSegment(img, tr, br, col, s.Width)
		paintSegment(img, br, bl, col, s.Width)
		paintSegment(img, bl, tl, col, s.Width)
	case domain.ShapeCircle:
		radius := math.Hypot(s.End.X-s.Start.X, s.End.Y-s.Start.Y)
		paintCircleOutline(img, s.Start, radius, col, s.Width)
	case domain.ShapeTriangle:
		x0, x1 := math.Min(s.Start.X, s.End.X), math.Max(s.Start.X, s.End.X)
		y0, y1 := math.Min(s.Start.Y, s.End.Y), math.Max(s.Start.Y, s.End.Y)
		apex := domain.Point{X: (x0 + x1) / 2, Y: y0}
		bl := domain.Point{X: x0, Y: y1}
		br := domain.Point{X: x1, Y: y1}
		paintSegment(img, apex, bl, col, s.Width)
		paintSegment(img, bl, br, col, s.Width)
		paintSegment(img, br, apex, col, s.Width)
	}
}

// paintSegment paints every pixel whose center lies within half the stroke
// width of the segment. Distance-to-segment painting gives round caps and
// round joins without any blending.
func paintSegment(img *image.RGBA, p0, p1 domain.Point, col color.RGBA, width float64) {
	half := width / 2
	if half < 0.5 {
		half = 0.5
	}
	b := img.Bounds()
	minX := clampInt(int(math.Floor(math.Min(p0.X, p1.X)-half)), b.Min.X, b.Max.X)
	maxX := clampInt(int(math.Ceil(math.Max(p0.X, p1.X)+half))+1, b.Min.X, b.Max.X)
	minY := clampInt(int(math.Floor(math.Min(p0.Y, p1.Y)-half)), b.Min.Y, b.Max.Y)
	maxY := clampInt(int(math.Ceil(math.Max(p0.Y, p1.Y)+half))+1, b.Min.Y, b.Max.Y)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			cx, cy := float64(x)+0.5, float64(y)+0.5
			if distToSegment(cx, cy, p0, p1) <= half {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func paintCircleOutline(img *image.RGBA, center domain.Point, radius float64, col color.RGBA, width float64) {
	half := width / 2
	if half < 0.5 {
		half = 0.5
	}
	b := img.Bounds()
	reach := radius + half
	minX := clampInt(int(math.Floor(center.X-reach)), b.Min.X, b.Max.X)
	maxX := clampInt(int(math.Ceil(center.X+reach))+1, b.Min.X, b.Max.X)
	minY := clampInt(int(math.Floor(center.Y-reach)), b.Min.Y, b.Max.Y)
	maxY := clampInt(int(math.Ceil(center.Y+reach))+1, b.Min.Y, b.Max.Y)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			cx, cy := float64(x)+0.5, float64(y)+0.5
			d := math.Hypot(cx-center.X, cy-center.Y)
			if math.Abs(d-radius) <= half {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

// distToSegment returns the distance from (px, py) to the segment p0-p1.
func distToSegment(px, py float64, p0, p1 domain.Point) float64 {
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-p0.X, py-p0.Y)
	}
	t := ((px-p0.X)*dx + (py-p0.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(p0.X+t*dx), py-(p0.Y+t*dy))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseColor parses #RGB and #RRGGBB hex colors. Unparseable input maps to
// opaque black so a malformed action still renders deterministically.
func ParseColor(s string) color.RGBA {
	black := color.RGBA{A: 0xFF}
	if len(s) == 0 || s[0] != '#' {
		return black
	}
	hex := s[1:]
	switch len(hex) {
	case 3:
		r, okR := hexNibble(hex[0])
		g, okG := hexNibble(hex[1])
		b, okB := hexNibble(hex[2])
		if !okR || !okG || !okB {
			return black
		}
		return color.RGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xFF}
	case 6:
		var v [3]uint8
		for i := 0; i < 3; i++ {
			hi, okHi := hexNibble(hex[2*i])
			lo, okLo := hexNibble(hex[2*i+1])
			if !okHi || !okLo {
				return black
			}
			v[i] = hi<<4 | lo
		}
		return color.RGBA{R: v[0], G: v[1], B: v[2], A: 0xFF}
	default:
		return black
	}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
