// Package strike computes strike-probability grids: per lattice cell, the
// fraction of ensemble members whose forecast track passes within a fixed
// radius of the cell center within the forecast horizon.
package strike

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/raster"
)

// Product-standard lattice resolution and proximity radius. 120 km is the
// conventional strike-probability radius for ensemble track products.
const (
	DefaultCellDegrees = 0.5
	DefaultRadiusKM    = 120.0
)

// kmPerDegLat is the meridional length of one degree of latitude. Zonal
// lengths scale by cos(latitude) under the local equirectangular
// approximation, which is accurate at the sub-degree distances involved.
const kmPerDegLat = 111.32

// Aggregator computes and persists strike-probability rasters for single
// systems.
type Aggregator struct {
	cellDeg  float64
	radiusKM float64
	logger   *slog.Logger
}

// New creates an Aggregator with the product-standard lattice and radius.
func New(logger *slog.Logger) *Aggregator {
	return &Aggregator{cellDeg: DefaultCellDegrees, radiusKM: DefaultRadiusKM, logger: logger}
}

// Compute builds the probability grid for one system over the basin envelope
// and persists it as a GeoTIFF at outPath. Cell values are the fraction of
// ensemble members whose track polyline passes within the radius of the cell
// center, in [0, 1]. The returned grid is the same data the file holds.
func (a *Aggregator) Compute(ctx context.Context, observations []domain.Observation, box domain.BoundingBox, outPath string) (*raster.Grid, error) {
	bundle := domain.BuildEnsemble(observations)
	if len(bundle.Tracks) == 0 {
		return nil, fmt.Errorf("strike grid: no member tracks")
	}

	index, err := buildSegmentIndex(bundle)
	if err != nil {
		return nil, fmt.Errorf("strike grid: %w", err)
	}

	rows := latticeSteps(box.LatMax-box.LatMin, a.cellDeg)
	cols := latticeSteps(box.LonMax-box.LonMin, a.cellDeg)
	grid := raster.NewGrid(raster.Envelope{
		West:  box.LonMin,
		East:  box.LonMax,
		South: box.LatMin,
		North: box.LatMax,
	}, rows, cols)

	members := float64(len(bundle.Tracks))
	hitCells := 0
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("strike grid: %w", err)
		}
		for c := 0; c < cols; c++ {
			lat, lon := grid.CellCenter(r, c)
			hits, err := index.membersWithin(lat, lon, a.radiusKM)
			if err != nil {
				return nil, fmt.Errorf("strike grid: %w", err)
			}
			if hits > 0 {
				grid.Set(r, c, float32(float64(hits)/members))
				hitCells++
			}
		}
	}

	if err := raster.WriteGeoTIFF(outPath, grid); err != nil {
		return nil, err
	}

	a.logger.Debug("strike grid computed",
		"system_id", bundle.SystemID,
		"members", len(bundle.Tracks),
		"cells_hit", hitCells,
		"path", outPath,
	)
	return grid, nil
}

// trackSegment is one polyline edge of a member track, indexed in degree
// space as (x=lon, y=lat). Single-point tracks become degenerate segments so
// proximity still counts them.
type trackSegment struct {
	member                 int
	aLat, aLon, bLat, bLon float64
	rect                   *rtreego.Rect
}

func (s *trackSegment) Bounds() *rtreego.Rect { return s.rect }

type segmentIndex struct {
	tree *rtreego.Rtree
}

func buildSegmentIndex(bundle domain.EnsembleBundle) (*segmentIndex, error) {
	tree := rtreego.NewTree(2, 25, 50)
	for memberIdx, track := range bundle.Tracks {
		points := track.Positions
		for i := 0; i < len(points); i++ {
			j := i + 1
			if j >= len(points) {
				if i > 0 {
					break // interior points are covered by their edges
				}
				j = i // single-point track: degenerate segment
			}
			seg := &trackSegment{
				member: memberIdx,
				aLat:   points[i].Lat, aLon: points[i].Lon,
				bLat: points[j].Lat, bLon: points[j].Lon,
			}
			rect, err := segmentRect(seg)
			if err != nil {
				return nil, err
			}
			seg.rect = rect
			tree.Insert(seg)
		}
	}
	return &segmentIndex{tree: tree}, nil
}

func segmentRect(s *trackSegment) (*rtreego.Rect, error) {
	minLon := math.Min(s.aLon, s.bLon)
	minLat := math.Min(s.aLat, s.bLat)
	dLon := math.Max(1e-9, math.Abs(s.aLon-s.bLon))
	dLat := math.Max(1e-9, math.Abs(s.aLat-s.bLat))
	return rtreego.NewRect(rtreego.Point{minLon, minLat}, []float64{dLon, dLat})
}

// membersWithin counts distinct members with at least one segment inside the
// radius of the query point. The R-tree narrows candidates with a rectangle
// inflated to the radius; exact segment distance decides membership.
func (idx *segmentIndex) membersWithin(lat, lon, radiusKM float64) (int, error) {
	dLat := radiusKM / kmPerDegLat
	cosLat := math.Max(0.05, math.Cos(lat*math.Pi/180))
	dLon := radiusKM / (kmPerDegLat * cosLat)

	rect, err := rtreego.NewRect(rtreego.Point{lon - dLon, lat - dLat}, []float64{2 * dLon, 2 * dLat})
	if err != nil {
		return 0, err
	}

	seen := make(map[int]struct{})
	for _, spatial := range idx.tree.SearchIntersect(rect) {
		seg := spatial.(*trackSegment)
		if _, dup := seen[seg.member]; dup {
			continue
		}
		if segmentDistanceKM(lat, lon, seg) <= radiusKM {
			seen[seg.member] = struct{}{}
		}
	}
	return len(seen), nil
}

// segmentDistanceKM measures from the query point to the segment on a local
// equirectangular plane centered at the query point.
func segmentDistanceKM(lat, lon float64, s *trackSegment) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	ax := (s.aLon - lon) * kmPerDegLat * cosLat
	ay := (s.aLat - lat) * kmPerDegLat
	bx := (s.bLon - lon) * kmPerDegLat * cosLat
	by := (s.bLat - lat) * kmPerDegLat

	dx := bx - ax
	dy := by - ay
	if dx == 0 && dy == 0 {
		return math.Hypot(ax, ay)
	}

	t := -(ax*dx + ay*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(ax+t*dx, ay+t*dy)
}

func latticeSteps(span, cellDeg float64) int {
	steps := int(math.Round(span / cellDeg))
	if steps < 1 {
		return 1
	}
	return steps
}
