package raster_test

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/raster"
)

const (
	canvasW = 200
	canvasH = 150
)

func rectAction(t *testing.T) domain.Action {
	t.Helper()
	return domain.NewShape("author", domain.ShapePayload{
		Kind:  domain.ShapeRectangle,
		Start: domain.Point{X: 10, Y: 10},
		End:   domain.Point{X: 50, Y: 40},
		Color: "#FF0000",
		Width: 2,
	})
}

func sampleHistory(t *testing.T) []domain.Action {
	t.Helper()
	return []domain.Action{
		rectAction(t),
		domain.NewStroke("author", domain.StrokePayload{
			Points: []domain.Point{{X: 60, Y: 60}, {X: 90, Y: 80}, {X: 100, Y: 60}},
			Color:  "#00FF00",
			Width:  4,
			Kind:   domain.StrokeFreehand,
		}),
		domain.NewFill("author", domain.FillPayload{
			Seed:  domain.Point{X: 20, Y: 20},
			Color: "#0000FF",
		}),
		domain.NewClear("author"),
		domain.NewShape("author", domain.ShapePayload{
			Kind:  domain.ShapeCircle,
			Start: domain.Point{X: 100, Y: 100},
			End:   domain.Point{X: 120, Y: 100},
			Color: "#123456",
			Width: 3,
		}),
	}
}

func TestReconstructIsDeterministic(t *testing.T) {
	history := sampleHistory(t)

	first := raster.Reconstruct(history, canvasW, canvasH)
	second := raster.Reconstruct(history, canvasW, canvasH)

	assert.True(t, bytes.Equal(first.Pix, second.Pix),
		"two reconstructions of the same history must be byte-identical")
}

func TestApplyingActionTwiceEqualsOnce(t *testing.T) {
	base := sampleHistory(t)
	extra := []domain.Action{
		rectAction(t),
		domain.NewFill("author", domain.FillPayload{Seed: domain.Point{X: 5, Y: 5}, Color: "#ABCDEF"}),
		domain.NewClear("author"),
		domain.NewStroke("author", domain.StrokePayload{
			Points: []domain.Point{{X: 0, Y: 0}, {X: 30, Y: 30}},
			Color:  "#111111",
			Width:  6,
			Kind:   domain.StrokeFreehand,
		}),
	}

	for _, a := range extra {
		once := raster.Reconstruct(append(append([]domain.Action{}, base...), a), canvasW, canvasH)
		twice := raster.Reconstruct(append(append([]domain.Action{}, base...), a, a), canvasW, canvasH)
		assert.True(t, bytes.Equal(once.Pix, twice.Pix),
			"duplicate application of %s must not change the buffer", a.Type)
	}
}

func TestStrokeWithFewerThanTwoPointsRendersNothing(t *testing.T) {
	blank := raster.NewCanvas(canvasW, canvasH)

	tap := domain.NewStroke("author", domain.StrokePayload{
		Points: []domain.Point{{X: 50, Y: 50}},
		Color:  "#FF0000",
		Width:  10,
		Kind:   domain.StrokeFreehand,
	})
	got := raster.Reconstruct([]domain.Action{tap}, canvasW, canvasH)

	assert.True(t, bytes.Equal(blank.Pix, got.Pix), "a stationary tap leaves the canvas blank")
}

func TestEraseStrokePaintsBackground(t *testing.T) {
	line := domain.NewStroke("author", domain.StrokePayload{
		Points: []domain.Point{{X: 10, Y: 50}, {X: 100, Y: 50}},
		Color:  "#FF0000",
		Width:  8,
		Kind:   domain.StrokeFreehand,
	})
	erase := domain.NewStroke("author", domain.StrokePayload{
		Points: []domain.Point{{X: 10, Y: 50}, {X: 100, Y: 50}},
		Color:  "#00FF00", // ignored for erase strokes
		Width:  10,
		Kind:   domain.StrokeErase,
	})

	blank := raster.NewCanvas(canvasW, canvasH)
	got := raster.Reconstruct([]domain.Action{line, erase}, canvasW, canvasH)

	assert.True(t, bytes.Equal(blank.Pix, got.Pix), "erasing over a stroke restores the background")
}

func TestClearResetsWithoutDiscardingLaterActions(t *testing.T) {
	history := []domain.Action{
		rectAction(t),
		domain.NewClear("author"),
		domain.NewStroke("author", domain.StrokePayload{
			Points: []domain.Point{{X: 10, Y: 100}, {X: 60, Y: 100}},
			Color:  "#00FF00",
			Width:  4,
			Kind:   domain.StrokeFreehand,
		}),
	}
	img := raster.Reconstruct(history, canvasW, canvasH)

	// The rectangle predates the clear and must be gone.
	assert.Equal(t, raster.Background, img.RGBAAt(10, 25))
	// The stroke after the clear still applies.
	assert.Equal(t, raster.ParseColor("#00FF00"), img.RGBAAt(30, 100))
}

func TestCircleOutlineGeometry(t *testing.T) {
	circle := domain.NewShape("author", domain.ShapePayload{
		Kind:  domain.ShapeCircle,
		Start: domain.Point{X: 100, Y: 75},
		End:   domain.Point{X: 120, Y: 75}, // radius 20
		Color: "#0000FF",
		Width: 3,
	})
	img := raster.Reconstruct([]domain.Action{circle}, canvasW, canvasH)

	blue := raster.ParseColor("#0000FF")
	assert.Equal(t, blue, img.RGBAAt(120, 75), "rim pixel on the radius is stroked")
	assert.Equal(t, blue, img.RGBAAt(80, 75), "opposite rim pixel is stroked")
	assert.Equal(t, raster.Background, img.RGBAAt(100, 75), "center stays blank: outlines only")
}

func TestFloodFillNoopWhenSeedAlreadyTargetColor(t *testing.T) {
	history := []domain.Action{
		domain.NewFill("author", domain.FillPayload{Seed: domain.Point{X: 5, Y: 5}, Color: "#FF00FF"}),
	}
	before := raster.Reconstruct(history, canvasW, canvasH)

	again := domain.NewFill("author", domain.FillPayload{Seed: domain.Point{X: 5, Y: 5}, Color: "#FF00FF"})
	after := raster.Reconstruct(append(history, again), canvasW, canvasH)

	assert.True(t, bytes.Equal(before.Pix, after.Pix), "fill over its own color changes nothing")
}

func TestFloodFillStopsAtExactColorBoundary(t *testing.T) {
	// A full-height vertical bar splits the canvas in two.
	bar := domain.NewShape("author", domain.ShapePayload{
		Kind:  domain.ShapeRectangle,
		Start: domain.Point{X: 98, Y: -10},
		End:   domain.Point{X: 102, Y: float64(canvasH) + 10},
		Color: "#000000",
		Width: 4,
	})
	fill := domain.NewFill("author", domain.FillPayload{Seed: domain.Point{X: 10, Y: 75}, Color: "#FFFF00"})
	img := raster.Reconstruct([]domain.Action{bar, fill}, canvasW, canvasH)

	yellow := raster.ParseColor("#FFFF00")
	assert.Equal(t, yellow, img.RGBAAt(10, 75), "seed side is repainted")
	assert.Equal(t, yellow, img.RGBAAt(50, 10), "fill reaches the whole connected region")
	assert.Equal(t, raster.Background, img.RGBAAt(180, 75), "far side of the bar is untouched")
}

func TestFloodFillOutOfBoundsSeedIsNoop(t *testing.T) {
	blank := raster.NewCanvas(canvasW, canvasH)
	fill := domain.NewFill("author", domain.FillPayload{Seed: domain.Point{X: -5, Y: 999}, Color: "#FF0000"})
	img := raster.Reconstruct([]domain.Action{fill}, canvasW, canvasH)
	assert.True(t, bytes.Equal(blank.Pix, img.Pix))
}

func TestReconstructAtDifferentSizesStartsFromScratch(t *testing.T) {
	history := sampleHistory(t)

	small := raster.Reconstruct(history, 80, 60)
	require.Equal(t, image.Rect(0, 0, 80, 60), small.Bounds())

	// Resizing replays the same log onto a fresh buffer; the small render
	// must not depend on any state from the large one.
	again := raster.Reconstruct(history, 80, 60)
	assert.True(t, bytes.Equal(small.Pix, again.Pix))
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, raster.Background, raster.ParseColor("#FFFFFF"))
	assert.Equal(t, raster.ParseColor("#FF0000"), raster.ParseColor("#f00"))

	black := raster.ParseColor("#000000")
	assert.Equal(t, black, raster.ParseColor("not-a-color"), "malformed input maps to opaque black")
	assert.Equal(t, black, raster.ParseColor(""))
}
