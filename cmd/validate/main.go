// Command validate checks a finished product run against the published
// directory contract: per-system track documents, strike rasters, rendered
// images, and the latest/ slot copies.
//
// Usage:
//
//	go run ./cmd/validate -output-dir /var/lib/cyclogen/products
//	go run ./cmd/validate -output-dir /var/lib/cyclogen/products -date 20260301
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cycloneoi/cyclogen/internal/geojson"
	"github.com/cycloneoi/cyclogen/internal/pipeline"
	"github.com/cycloneoi/cyclogen/internal/raster"
)

// Chart dimensions and slot names are part of the directory contract, pinned
// here independently of the code that writes them.
const (
	chartWidth  = 900
	chartHeight = 560
)

var latestSlots = []string{"cyclogenesis.png", "ensemble_tracks.png", "strike_probability.png"}

var datedDir = regexp.MustCompile(`^\d{8}$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// stormDir is one storm_<id> directory inside a dated run directory.
type stormDir struct {
	id  string
	dir string
}

func main() {
	outputDir := flag.String("output-dir", "", "product tree root written by cyclogen")
	date := flag.String("date", "", "run date to check, YYYYMMDD (default: newest dated directory)")
	flag.Parse()

	if *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*outputDir, *date); code != 0 {
		os.Exit(code)
	}
}

func run(outputDir, date string) int {
	fmt.Println("=== Product Contract Validation ===")
	fmt.Println()

	runDir, err := resolveRunDir(outputDir, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	var phases []*phase
	var storms []stormDir
	if runDir == "" {
		fmt.Println("No dated run directory found; checking latest/ slots only.")
	} else {
		fmt.Printf("Run directory: %s\n", runDir)
		storms, err = collectStorms(runDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read run directory: %v\n", err)
			return 1
		}
		phases = append(phases,
			validateLayout(runDir, storms),
			validateTrackDocuments(storms),
			validateStrikeRasters(storms),
			validateTrackImages(storms),
		)
	}
	phases = append(phases, validateLatestSlots(filepath.Join(outputDir, "latest")))

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Checked: %d storm directories, %d latest/ slots\n", len(storms), len(latestSlots))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Directory resolution ──

// resolveRunDir picks the dated run directory to check. An explicit date must
// exist; without one the newest dated directory wins, and an empty string
// means the tree has none (a run with no admitted systems writes only
// latest/, so that is not itself an error).
func resolveRunDir(outputDir, date string) (string, error) {
	if date != "" {
		dir := filepath.Join(outputDir, date)
		info, err := os.Stat(dir)
		if err != nil {
			return "", fmt.Errorf("run directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("run directory %s is not a directory", dir)
		}
		return dir, nil
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("read output directory: %w", err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() && datedDir.MatchString(e.Name()) {
			dates = append(dates, e.Name())
		}
	}
	if len(dates) == 0 {
		return "", nil
	}
	sort.Strings(dates)
	return filepath.Join(outputDir, dates[len(dates)-1]), nil
}

func collectStorms(runDir string) ([]stormDir, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, err
	}
	var storms []stormDir
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "storm_") {
			storms = append(storms, stormDir{
				id:  strings.TrimPrefix(e.Name(), "storm_"),
				dir: filepath.Join(runDir, e.Name()),
			})
		}
	}
	return storms, nil
}

// ── Phase 1: Run Layout ──
// The dated directory holds only storm_<id> directories, each carrying the
// core product files.

func validateLayout(runDir string, storms []stormDir) *phase {
	p := &phase{name: "Phase 1: Run Layout"}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		p.errorf("read run directory: %v", err)
		return p
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "storm_") {
			p.errorf("unexpected entry %q in run directory", e.Name())
		}
	}
	if len(storms) == 0 {
		p.errorf("run directory contains no storm_ directories")
	}

	core := []string{pipeline.FileEnsembleGeoJSON, pipeline.FileMeanGeoJSON, pipeline.FileStrikeTIFF}
	for _, s := range storms {
		for _, name := range core {
			if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
				p.errorf("storm %s: missing %s", s.id, name)
			}
		}
	}
	return p
}

// ── Phase 2: Track Documents ──
// GeoJSON documents parse, carry LineString features in [lon, lat] order, and
// keep their per-step property series aligned with the coordinates.

func validateTrackDocuments(storms []stormDir) *phase {
	p := &phase{name: "Phase 2: Track Documents (GeoJSON)"}
	for _, s := range storms {
		checkEnsembleDocument(p, s)
		checkConsensusDocument(p, s)
	}
	return p
}

func checkEnsembleDocument(p *phase, s stormDir) {
	fc, ok := loadCollection(p, s, pipeline.FileEnsembleGeoJSON)
	if !ok {
		return
	}
	if len(fc.Features) == 0 {
		p.errorf("storm %s: %s has no features", s.id, pipeline.FileEnsembleGeoJSON)
		return
	}
	for i, f := range fc.Features {
		where := fmt.Sprintf("storm %s: %s feature %d", s.id, pipeline.FileEnsembleGeoJSON, i)
		n := checkGeometry(p, where, f)
		if n == 0 {
			continue
		}
		if _, ok := f.Properties["member"]; !ok {
			p.errorf("%s: missing member property", where)
		}
		checkSeries(p, where, f.Properties, "timesteps", n)
		checkSeries(p, where, f.Properties, "pressure_hpa", n)
		checkSeries(p, where, f.Properties, "wind_ms", n)
		checkPressureRange(p, where, f.Properties, "pressure_hpa")
	}
}

func checkConsensusDocument(p *phase, s stormDir) {
	fc, ok := loadCollection(p, s, pipeline.FileMeanGeoJSON)
	if !ok {
		return
	}
	// Zero features is the published form of an empty consensus.
	if len(fc.Features) > 1 {
		p.errorf("storm %s: %s has %d features (want 0 or 1)", s.id, pipeline.FileMeanGeoJSON, len(fc.Features))
		return
	}
	for _, f := range fc.Features {
		where := fmt.Sprintf("storm %s: %s", s.id, pipeline.FileMeanGeoJSON)
		n := checkGeometry(p, where, f)
		if n == 0 {
			continue
		}
		checkSeries(p, where, f.Properties, "timesteps", n)
		checkPercentiles(p, where, f.Properties, "pressure_percentiles_hpa", n)
		checkPercentiles(p, where, f.Properties, "wind_percentiles_ms", n)
	}
}

func loadCollection(p *phase, s stormDir, name string) (geojson.FeatureCollection, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		p.errorf("storm %s: read %s: %v", s.id, name, err)
		return geojson.FeatureCollection{}, false
	}
	fc, err := geojson.Decode(data)
	if err != nil {
		p.errorf("storm %s: %s: %v", s.id, name, err)
		return geojson.FeatureCollection{}, false
	}
	if fc.Type != "FeatureCollection" {
		p.errorf("storm %s: %s: type is %q", s.id, name, fc.Type)
		return geojson.FeatureCollection{}, false
	}
	return fc, true
}

// checkGeometry validates one feature's LineString and returns its coordinate
// count, or 0 when the geometry is unusable.
func checkGeometry(p *phase, where string, f geojson.Feature) int {
	if f.Type != "Feature" {
		p.errorf("%s: type is %q", where, f.Type)
		return 0
	}
	if f.Geometry.Type != "LineString" {
		p.errorf("%s: geometry type is %q", where, f.Geometry.Type)
		return 0
	}
	if len(f.Geometry.Coordinates) == 0 {
		p.errorf("%s: empty coordinates", where)
		return 0
	}
	for j, c := range f.Geometry.Coordinates {
		if len(c) != 2 {
			p.errorf("%s: coordinate %d has %d values", where, j, len(c))
			return 0
		}
		lon, lat := c[0], c[1]
		if lon < -180 || lon > 360 || lat < -90 || lat > 90 {
			p.errorf("%s: coordinate %d [%g, %g] is not a [lon, lat] pair", where, j, lon, lat)
		}
	}
	return len(f.Geometry.Coordinates)
}

func checkSeries(p *phase, where string, props map[string]any, key string, want int) {
	list, ok := props[key].([]any)
	if !ok {
		p.errorf("%s: property %q missing or not a list", where, key)
		return
	}
	if len(list) != want {
		p.errorf("%s: property %q has %d entries for %d coordinates", where, key, len(list), want)
	}
}

func checkPercentiles(p *phase, where string, props map[string]any, key string, want int) {
	list, ok := props[key].([]any)
	if !ok {
		p.errorf("%s: property %q missing or not a list", where, key)
		return
	}
	if len(list) != want {
		p.errorf("%s: property %q has %d entries for %d coordinates", where, key, len(list), want)
		return
	}
	for i, v := range list {
		tuple, ok := v.([]any)
		if !ok || len(tuple) != 3 {
			p.errorf("%s: property %q entry %d is not a percentile triple", where, key, i)
			continue
		}
		vals := make([]float64, 0, 3)
		for _, t := range tuple {
			f, ok := t.(float64)
			if !ok {
				p.errorf("%s: property %q entry %d has a non-numeric value", where, key, i)
				break
			}
			vals = append(vals, f)
		}
		if len(vals) == 3 && (vals[0] > vals[1] || vals[1] > vals[2]) {
			p.errorf("%s: property %q entry %d percentiles not ordered: %v", where, key, i, vals)
		}
	}
}

// checkPressureRange catches unit mixups: bulletin pressures arrive in Pa and
// a missed conversion lands two orders of magnitude outside this window.
func checkPressureRange(p *phase, where string, props map[string]any, key string) {
	list, _ := props[key].([]any)
	for i, v := range list {
		f, ok := v.(float64)
		if !ok {
			p.errorf("%s: property %q entry %d has a non-numeric value", where, key, i)
			continue
		}
		if f < 800 || f > 1100 {
			p.errorf("%s: pressure %g hPa outside plausible range", where, f)
		}
	}
}

// ── Phase 3: Strike Rasters ──
// GeoTIFFs load, carry a sane georeferenced shape, and hold probabilities in
// [0, 1]; the styled PNG matches the grid shape pixel for pixel.

func validateStrikeRasters(storms []stormDir) *phase {
	p := &phase{name: "Phase 3: Strike Rasters (GeoTIFF)"}
	for _, s := range storms {
		grid, err := raster.ReadGeoTIFF(filepath.Join(s.dir, pipeline.FileStrikeTIFF))
		if err != nil {
			p.errorf("storm %s: %v", s.id, err)
			continue
		}
		if grid.Rows <= 0 || grid.Cols <= 0 {
			p.errorf("storm %s: degenerate grid %dx%d", s.id, grid.Cols, grid.Rows)
			continue
		}
		if grid.Env.West >= grid.Env.East || grid.Env.South >= grid.Env.North {
			p.errorf("storm %s: inverted envelope %+v", s.id, grid.Env)
		}

		bad := 0
		for _, v := range grid.Data {
			if math.IsNaN(float64(v)) || v < 0 || v > 1 {
				bad++
			}
		}
		if bad > 0 {
			p.errorf("storm %s: %d cells outside [0, 1]", s.id, bad)
		}

		checkStrikeImage(p, s, grid)
	}
	return p
}

func checkStrikeImage(p *phase, s stormDir, grid *raster.Grid) {
	path := filepath.Join(s.dir, pipeline.FileStrikePNG)
	img, err := decodePNG(path)
	if err != nil {
		// An all-masked grid has no image to render.
		if os.IsNotExist(err) && grid.Max() == 0 {
			return
		}
		p.errorf("storm %s: %s: %v", s.id, pipeline.FileStrikePNG, err)
		return
	}
	b := img.Bounds()
	if b.Dx() != grid.Cols || b.Dy() != grid.Rows {
		p.errorf("storm %s: %s is %dx%d for a %dx%d grid",
			s.id, pipeline.FileStrikePNG, b.Dx(), b.Dy(), grid.Cols, grid.Rows)
	}
}

// ── Phase 4: Track Images ──

func validateTrackImages(storms []stormDir) *phase {
	p := &phase{name: "Phase 4: Track Images (SVG/PNG)"}
	for _, s := range storms {
		data, err := os.ReadFile(filepath.Join(s.dir, pipeline.FileTracksSVG))
		if err != nil {
			p.errorf("storm %s: %v", s.id, err)
		} else {
			text := string(data)
			if !strings.Contains(text, "<svg") || !strings.Contains(text, "</svg>") {
				p.errorf("storm %s: %s is not an SVG document", s.id, pipeline.FileTracksSVG)
			}
			if !strings.Contains(text, "ECMWF ensemble tracks") {
				p.errorf("storm %s: %s missing title text", s.id, pipeline.FileTracksSVG)
			}
		}

		img, err := decodePNG(filepath.Join(s.dir, pipeline.FileTracksPNG))
		if err != nil {
			p.errorf("storm %s: %v", s.id, err)
			continue
		}
		b := img.Bounds()
		if b.Dx() != chartWidth || b.Dy() != chartHeight {
			p.errorf("storm %s: %s is %dx%d (want %dx%d)",
				s.id, pipeline.FileTracksPNG, b.Dx(), b.Dy(), chartWidth, chartHeight)
		}
	}
	return p
}

// ── Phase 5: Latest Slots ──
// The latest/ directory always carries all three slots, populated either from
// the run's first completed system or from placeholders.

func validateLatestSlots(dir string) *phase {
	p := &phase{name: "Phase 5: Latest Slots"}
	for _, slot := range latestSlots {
		img, err := decodePNG(filepath.Join(dir, slot))
		if err != nil {
			p.errorf("%s: %v", slot, err)
			continue
		}
		if slot != "ensemble_tracks.png" {
			continue
		}
		// The tracks slot is always chart-sized; the strike slots may carry a
		// grid-sized raster render instead of a placeholder.
		b := img.Bounds()
		if b.Dx() != chartWidth || b.Dy() != chartHeight {
			p.errorf("%s: %dx%d (want %dx%d)", slot, b.Dx(), b.Dy(), chartWidth, chartHeight)
		}
	}
	return p
}

// ── Helpers ──

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
