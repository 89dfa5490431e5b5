package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// NewCanvas allocates an image filled with the given background color.
func NewCanvas(width, height int, bg color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	return img
}

// DrawLine draws a one-pixel Bresenham segment, clipped to the image bounds.
func DrawLine(img *image.NRGBA, startX, startY, endX, endY int, c color.NRGBA) {
	// Walk along the dominant axis so every step advances one pixel.
	followX := abs(endY-startY) <= abs(endX-startX)
	var x0, x1, y0, y1 int
	if followX {
		x0, x1, y0, y1 = startX, endX, startY, endY
	} else {
		x0, x1, y0, y1 = startY, endY, startX, endX
	}

	deltaX := abs(x1 - x0)
	deltaY := abs(y1 - y0)

	xstep, ystep := 1, 1
	if x0 > x1 {
		xstep = -1
	}
	if y0 > y1 {
		ystep = -1
	}

	bounds := img.Bounds()
	plot := func(x, y int) {
		if image.Pt(x, y).In(bounds) {
			img.SetNRGBA(x, y, c)
		}
	}

	runErr := 0
	x, y := x0, y0
	for x != x1+xstep {
		if followX {
			plot(x, y)
		} else {
			plot(y, x)
		}
		x += xstep
		runErr += deltaY
		if runErr >= deltaX {
			y += ystep
			runErr -= deltaX
		}
	}
}

// DrawDisc fills a circle of radius r centered at (cx, cy), clipped to the
// image bounds.
func DrawDisc(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	bounds := img.Bounds()
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			if image.Pt(cx+dx, cy+dy).In(bounds) {
				img.SetNRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

// DrawCaption renders text with the fixed 7x13 bitmap face. The point (x, y)
// anchors the text baseline's left end.
func DrawCaption(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// CaptionWidth measures text in pixels under the caption face, for centering.
func CaptionWidth(text string) int {
	d := font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(text).Ceil()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
