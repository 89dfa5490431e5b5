package raster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testBG   = color.NRGBA{R: 0x05, G: 0x06, B: 0x08, A: 0xff}
	testGold = color.NRGBA{R: 0xf4, G: 0xc5, B: 0x42, A: 0xff}
)

func TestNewCanvas_FilledWithBackground(t *testing.T) {
	img := NewCanvas(4, 3, testBG)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.Equal(t, testBG, img.NRGBAAt(0, 0))
	assert.Equal(t, testBG, img.NRGBAAt(3, 2))
}

func TestDrawLine_CoversEndpoints(t *testing.T) {
	img := NewCanvas(10, 10, testBG)
	DrawLine(img, 1, 1, 8, 5, testGold)

	assert.Equal(t, testGold, img.NRGBAAt(1, 1))
	assert.Equal(t, testGold, img.NRGBAAt(8, 5))
}

func TestDrawLine_SteepAndReversed(t *testing.T) {
	img := NewCanvas(10, 10, testBG)
	DrawLine(img, 2, 9, 3, 0, testGold) // steeper than 45 degrees, upward

	assert.Equal(t, testGold, img.NRGBAAt(2, 9))
	assert.Equal(t, testGold, img.NRGBAAt(3, 0))
}

func TestDrawLine_ClipsOutOfBounds(t *testing.T) {
	img := NewCanvas(5, 5, testBG)
	// Must not panic; only the in-bounds portion is drawn.
	DrawLine(img, -10, 2, 20, 2, testGold)

	assert.Equal(t, testGold, img.NRGBAAt(0, 2))
	assert.Equal(t, testGold, img.NRGBAAt(4, 2))
}

func TestDrawDisc(t *testing.T) {
	img := NewCanvas(9, 9, testBG)
	DrawDisc(img, 4, 4, 2, testGold)

	assert.Equal(t, testGold, img.NRGBAAt(4, 4))
	assert.Equal(t, testGold, img.NRGBAAt(6, 4))
	assert.Equal(t, testBG, img.NRGBAAt(8, 8), "pixels outside the radius stay untouched")
}

func TestDrawCaption_MarksPixels(t *testing.T) {
	img := NewCanvas(120, 30, testBG)
	DrawCaption(img, 4, 20, "NO ACTIVE SYSTEMS", testGold)

	painted := 0
	for y := 0; y < 30; y++ {
		for x := 0; x < 120; x++ {
			if img.NRGBAAt(x, y) == testGold {
				painted++
			}
		}
	}
	require.Positive(t, painted, "caption must paint glyph pixels")

	width := CaptionWidth("NO ACTIVE SYSTEMS")
	assert.Positive(t, width)
}
