package pipeline

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	svg "github.com/ajstarks/svgo"

	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/raster"
)

// Track overview canvas geometry.
const (
	chartWidth  = 900
	chartHeight = 560
	chartInset  = 48
)

// House palette for chart products.
var (
	chartBG   = color.NRGBA{R: 0x05, G: 0x06, B: 0x08, A: 0xff}
	chartGold = color.NRGBA{R: 0xf4, G: 0xc5, B: 0x42, A: 0xff}
	chartInk  = color.NRGBA{R: 0xe6, G: 0xea, B: 0xf0, A: 0xff}
	// Member green premixed at 35% over the background; the raster plotter
	// writes opaque pixels.
	chartGreenDim  = color.NRGBA{R: 0x1d, G: 0x52, B: 0x32, A: 0xff}
	chartFrameGray = color.NRGBA{R: 0x2a, G: 0x34, B: 0x42, A: 0xff}
)

// SVG styles for the same palette.
const (
	styleBackground   = "fill:#050608"
	styleFrame        = "fill:none;stroke:#2a3442;stroke-width:1"
	styleMember       = "fill:none;stroke:#4ade80;stroke-width:1;stroke-opacity:0.35"
	styleMemberDot    = "fill:#4ade80;fill-opacity:0.35"
	styleConsensus    = "fill:none;stroke:#f4c542;stroke-width:2.5"
	styleConsensusDot = "fill:#f4c542"
	styleTitle        = "fill:#e6eaf0;font-family:sans-serif;font-size:16px"
)

// chartProjection maps geographic coordinates onto the canvas under an
// equirectangular mapping of the basin envelope. Longitude grows rightward
// and latitude upward.
type chartProjection struct {
	box domain.BoundingBox
}

func (pr chartProjection) point(lat, lon float64) (x, y int) {
	w := float64(chartWidth - 2*chartInset)
	h := float64(chartHeight - 2*chartInset)
	fx := (lon - pr.box.LonMin) / (pr.box.LonMax - pr.box.LonMin)
	fy := (pr.box.LatMax - lat) / (pr.box.LatMax - pr.box.LatMin)
	return chartInset + int(math.Round(fx*w)), chartInset + int(math.Round(fy*h))
}

func (pr chartProjection) positions(positions []domain.Position) (xs, ys []int) {
	xs = make([]int, len(positions))
	ys = make([]int, len(positions))
	for i, pos := range positions {
		xs[i], ys[i] = pr.point(pos.Lat, pos.Lon)
	}
	return xs, ys
}

// writeTrackPlots produces the two overview charts for one system: the SVG
// original and its PNG rasterization, drawn with the same projection.
func writeTrackPlots(dir string, ensemble domain.EnsembleBundle, consensus domain.ConsensusBundle, box domain.BoundingBox, runDate time.Time) error {
	pr := chartProjection{box: box}
	title := fmt.Sprintf("ECMWF ensemble tracks - system %s - %s", ensemble.SystemID, runDate.Format(dateLayout))

	if err := writeTrackSVG(filepath.Join(dir, FileTracksSVG), pr, ensemble, consensus, title); err != nil {
		return err
	}
	return writeTrackPNG(filepath.Join(dir, FileTracksPNG), pr, ensemble, consensus, title)
}

func writeTrackSVG(path string, pr chartProjection, ensemble domain.EnsembleBundle, consensus domain.ConsensusBundle, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	canvas := svg.New(f)
	canvas.Start(chartWidth, chartHeight)
	canvas.Rect(0, 0, chartWidth, chartHeight, styleBackground)
	canvas.Rect(chartInset, chartInset, chartWidth-2*chartInset, chartHeight-2*chartInset, styleFrame)

	for _, track := range ensemble.Tracks {
		xs, ys := pr.positions(track.Positions)
		switch {
		case len(xs) >= 2:
			canvas.Polyline(xs, ys, styleMember)
		case len(xs) == 1:
			canvas.Circle(xs[0], ys[0], 2, styleMemberDot)
		}
	}

	xs, ys := pr.positions(consensus.Positions)
	if len(xs) >= 2 {
		canvas.Polyline(xs, ys, styleConsensus)
	}
	for i := range xs {
		canvas.Circle(xs[i], ys[i], 3, styleConsensusDot)
	}

	canvas.Text(chartInset, chartInset-16, title, styleTitle)
	canvas.End()

	return f.Close()
}

func writeTrackPNG(path string, pr chartProjection, ensemble domain.EnsembleBundle, consensus domain.ConsensusBundle, title string) error {
	img := raster.NewCanvas(chartWidth, chartHeight, chartBG)

	left, top := chartInset, chartInset
	right, bottom := chartWidth-chartInset, chartHeight-chartInset
	raster.DrawLine(img, left, top, right, top, chartFrameGray)
	raster.DrawLine(img, right, top, right, bottom, chartFrameGray)
	raster.DrawLine(img, right, bottom, left, bottom, chartFrameGray)
	raster.DrawLine(img, left, bottom, left, top, chartFrameGray)

	for _, track := range ensemble.Tracks {
		xs, ys := pr.positions(track.Positions)
		if len(xs) == 1 {
			raster.DrawDisc(img, xs[0], ys[0], 2, chartGreenDim)
			continue
		}
		for i := 1; i < len(xs); i++ {
			raster.DrawLine(img, xs[i-1], ys[i-1], xs[i], ys[i], chartGreenDim)
		}
	}

	xs, ys := pr.positions(consensus.Positions)
	for i := 1; i < len(xs); i++ {
		raster.DrawLine(img, xs[i-1], ys[i-1], xs[i], ys[i], chartGold)
	}
	for i := range xs {
		raster.DrawDisc(img, xs[i], ys[i], 3, chartGold)
	}

	raster.DrawCaption(img, chartInset, chartInset-16, title, chartInk)

	return raster.WritePNG(path, img)
}
