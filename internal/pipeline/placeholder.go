package pipeline

import (
	"time"

	"github.com/cycloneoi/cyclogen/internal/raster"
)

// writePlaceholder paints the dark "no active systems" card used for latest/
// slots when a run has nothing to show.
func writePlaceholder(path string, effectiveDate time.Time) error {
	img := raster.NewCanvas(chartWidth, chartHeight, chartBG)

	title := "NO ACTIVE SYSTEMS"
	subtitle := "ensemble forecast " + effectiveDate.Format("2006-01-02")

	raster.DrawCaption(img, (chartWidth-raster.CaptionWidth(title))/2, chartHeight/2-8, title, chartGold)
	raster.DrawCaption(img, (chartWidth-raster.CaptionWidth(subtitle))/2, chartHeight/2+16, subtitle, chartInk)

	return raster.WritePNG(path, img)
}
