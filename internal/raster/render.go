package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// Palette is the ten-step discrete ramp for strike-probability products, low
// to high. The exact colors and their order are part of the product contract;
// they are never derived from the data range.
var Palette = [10]color.NRGBA{
	{R: 0x8d, G: 0xf5, B: 0x2c, A: 0xff}, // #8df52c
	{R: 0x6a, G: 0xe2, B: 0x4c, A: 0xff}, // #6ae24c
	{R: 0x61, G: 0xbb, B: 0x30, A: 0xff}, // #61bb30
	{R: 0x50, G: 0x8b, B: 0x15, A: 0xff}, // #508b15
	{R: 0x05, G: 0x79, B: 0x41, A: 0xff}, // #057941
	{R: 0x23, G: 0x97, B: 0xd1, A: 0xff}, // #2397d1
	{R: 0x55, G: 0x7f, B: 0xf3, A: 0xff}, // #557ff3
	{R: 0x14, G: 0x3c, B: 0xdc, A: 0xff}, // #143cdc
	{R: 0x39, G: 0x10, B: 0xb4, A: 0xff}, // #3910b4
	{R: 0x1e, G: 0x00, B: 0x63, A: 0xff}, // #1e0063
}

// ErrAllMasked reports a raster with no positive cells. There is nothing to
// render; callers skip the image and carry on.
var ErrAllMasked = errors.New("raster has no positive cells")

// RenderFile reads a probability raster and writes its styled PNG next to it.
// The masking and scale errors of RenderGrid pass through unwrapped so
// callers can classify them with errors.Is.
func RenderFile(rasterPath, imagePath string) error {
	grid, err := ReadGeoTIFF(rasterPath)
	if err != nil {
		return fmt.Errorf("open raster: %w", err)
	}
	img, err := RenderGrid(grid)
	if err != nil {
		return err
	}
	return WritePNG(imagePath, img)
}

// RenderGrid rasterizes the grid one pixel per cell: cells with values <= 0
// (and NaN cells) are "no signal" and render fully transparent; positive
// cells take their palette bucket. Grids whose maximum exceeds 1 are treated
// as percentages and scaled by 1/100 before bucketing. The image carries no
// axes, margins, or legend; its bounds are exactly the raster's shape.
func RenderGrid(g *Grid) (*image.NRGBA, error) {
	scale := 1.0
	if g.Max() > 1 {
		scale = 1.0 / 100.0
	}

	img := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	opaque := 0
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := float64(g.At(r, c))
			if v <= 0 || math.IsNaN(v) {
				continue
			}
			img.SetNRGBA(c, r, PaletteColor(v*scale))
			opaque++
		}
	}
	if opaque == 0 {
		return nil, ErrAllMasked
	}
	return img, nil
}

// PaletteColor maps a probability in (0, 1] to its discrete bucket. Buckets
// are fixed tenths: (0.0, 0.1] takes Palette[0] and (0.9, 1.0] takes
// Palette[9]. Out-of-range positives clamp to the top bucket.
func PaletteColor(v float64) color.NRGBA {
	idx := int(math.Ceil(v*10)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(Palette)-1 {
		idx = len(Palette) - 1
	}
	return Palette[idx]
}

// WritePNG encodes an image to disk.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
