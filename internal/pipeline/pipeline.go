package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/geojson"
	"github.com/cycloneoi/cyclogen/internal/observability"
	"github.com/cycloneoi/cyclogen/internal/raster"
)

// Per-storm product file names. The geojson and raster files are the product
// contract; the svg/png overview charts are supplemental.
const (
	FileEnsembleGeoJSON = "ensemble_tracks.geojson"
	FileMeanGeoJSON     = "mean_track.geojson"
	FileTracksSVG       = "ensemble_tracks.svg"
	FileTracksPNG       = "ensemble_tracks.png"
	FileStrikeTIFF      = "strike_probability.tif"
	FileStrikePNG       = "strike_probability.png"
)

// latest/ holds the current run's headline images under stable names.
const (
	latestDirName    = "latest"
	latestGenesisPNG = "cyclogenesis.png"
)

const dateLayout = "20060102"

// DataSource supplies the day's forecast observations.
type DataSource interface {
	Download(ctx context.Context, runDate time.Time) (domain.SourceMarker, error)
	Load(marker domain.SourceMarker) ([]domain.Observation, error)
}

// StrikeComputer builds one system's strike-probability grid and persists it
// at outPath.
type StrikeComputer interface {
	Compute(ctx context.Context, observations []domain.Observation, box domain.BoundingBox, outPath string) (*raster.Grid, error)
}

// RunNotifier announces finished products to downstream consumers.
type RunNotifier interface {
	NotifyRun(ctx context.Context, manifests []domain.ProductManifest) error
}

// Config carries the resolved run parameters.
type Config struct {
	RunDate         time.Time
	OutputDir       string
	Basin           domain.BoundingBox
	MinSystemNumber int
}

// StormResult is one system's explicit outcome. Err is set only when a
// contract product could not be written; chart and image problems degrade to
// warnings and leave Err nil.
type StormResult struct {
	SystemID string
	Dir      string
	Products []string
	Err      error
}

// RunReport summarizes a complete run.
type RunReport struct {
	RunDate       time.Time
	EffectiveDate time.Time
	Results       []StormResult
	Failed        int
}

// Manifests returns one ProductManifest per completed system, in basin order.
func (r *RunReport) Manifests() []domain.ProductManifest {
	var manifests []domain.ProductManifest
	for _, res := range r.Results {
		if res.Err != nil || len(res.Products) == 0 {
			continue
		}
		manifests = append(manifests, domain.ProductManifest{
			RunDate:       r.RunDate.Format(dateLayout),
			EffectiveDate: r.EffectiveDate.Format(dateLayout),
			SystemID:      res.SystemID,
			Products:      res.Products,
			ProducedAt:    domain.Now(),
		})
	}
	return manifests
}

// Pipeline orchestrates one product-generation run.
type Pipeline struct {
	source   DataSource
	strike   StrikeComputer
	notifier RunNotifier // nil when notifications are disabled
	logger   *slog.Logger
	metrics  *observability.Metrics
	cfg      Config
}

// New creates a Pipeline with the given collaborators. notifier may be nil.
func New(source DataSource, strike StrikeComputer, notifier RunNotifier, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Pipeline {
	return &Pipeline{
		source:   source,
		strike:   strike,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run executes the full run: fetch and decode the bulletin, select the basin,
// produce every system's products, refresh latest/, and notify. Per-system
// failures are collected in the report and never abort the run; only an
// unavailable bulletin does.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	defer func() {
		p.metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())
		p.metrics.LastRunTimestamp.Set(float64(domain.Now().Unix()))
	}()

	runDate := p.cfg.RunDate
	p.logger.Info("run started",
		"run_date", runDate.Format(dateLayout),
		"output_dir", p.cfg.OutputDir,
	)

	marker, err := p.source.Download(ctx, runDate)
	if err != nil {
		return nil, err
	}
	observations, err := p.source.Load(marker)
	if err != nil {
		return nil, err
	}
	if !marker.EffectiveDate.Equal(marker.RunDate) {
		p.logger.Warn("run uses previous day's bulletin",
			"run_date", marker.RunDate.Format(dateLayout),
			"effective_date", marker.EffectiveDate.Format(dateLayout),
		)
	}

	report := &RunReport{RunDate: runDate, EffectiveDate: marker.EffectiveDate}

	groups := domain.SelectBasin(observations, p.cfg.Basin, p.cfg.MinSystemNumber)
	if len(groups) == 0 {
		p.logger.Warn("no active systems in basin", "run_date", runDate.Format(dateLayout))
		if err := p.publishLatest(nil, marker.EffectiveDate); err != nil {
			p.logger.Warn("publishing latest products failed", "error", err)
		}
		return report, nil
	}

	runDir := filepath.Join(p.cfg.OutputDir, runDate.Format(dateLayout))
	for i, group := range groups {
		if ctx.Err() != nil {
			skipped := len(groups) - i
			p.metrics.SystemsProcessed.WithLabelValues("skipped").Add(float64(skipped))
			p.logger.Warn("run interrupted, skipping remaining systems",
				"skipped", skipped, "reason", ctx.Err())
			break
		}

		res := p.processSystem(ctx, runDir, group)
		if res.Err != nil {
			p.metrics.SystemsProcessed.WithLabelValues("failed").Inc()
			p.logger.Error("system processing failed",
				"system_id", group.SystemID, "error", res.Err)
			report.Failed++
		} else {
			p.metrics.SystemsProcessed.WithLabelValues("completed").Inc()
		}
		report.Results = append(report.Results, res)
	}

	if err := p.publishLatest(report.Results, marker.EffectiveDate); err != nil {
		p.logger.Warn("publishing latest products failed", "error", err)
	}

	p.notify(ctx, report)

	p.logger.Info("run finished",
		"systems", len(report.Results),
		"failed", report.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

// processSystem writes one system's products into its own directory. Files
// already written stay in place when a later step fails.
func (p *Pipeline) processSystem(ctx context.Context, runDir string, group domain.SystemGroup) StormResult {
	dir := filepath.Join(runDir, "storm_"+group.SystemID)
	res := StormResult{SystemID: group.SystemID, Dir: dir}

	logger := p.logger.With("system_id", group.SystemID)
	logger.Info("processing system", "observations", len(group.Observations))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Err = fmt.Errorf("creating system directory: %w", err)
		return res
	}

	ensemble := domain.BuildEnsemble(group.Observations)
	if err := writeGeoJSON(filepath.Join(dir, FileEnsembleGeoJSON), geojson.EncodeEnsemble(ensemble)); err != nil {
		res.Err = fmt.Errorf("ensemble tracks: %w", err)
		return res
	}
	res.Products = append(res.Products, FileEnsembleGeoJSON)

	consensus := domain.BuildConsensus(group.Observations)
	meanFC := geojson.Encode(nil, nil)
	if len(consensus.Positions) > 0 {
		meanFC = geojson.EncodeConsensus(consensus)
	} else {
		logger.Warn("consensus track empty, writing mean product without features")
	}
	if err := writeGeoJSON(filepath.Join(dir, FileMeanGeoJSON), meanFC); err != nil {
		res.Err = fmt.Errorf("mean track: %w", err)
		return res
	}
	res.Products = append(res.Products, FileMeanGeoJSON)

	tifPath := filepath.Join(dir, FileStrikeTIFF)
	strikeStart := time.Now()
	if _, err := p.strike.Compute(ctx, group.Observations, p.cfg.Basin, tifPath); err != nil {
		res.Err = fmt.Errorf("strike probability: %w", err)
		return res
	}
	p.metrics.StrikeGridSeconds.Observe(time.Since(strikeStart).Seconds())
	res.Products = append(res.Products, FileStrikeTIFF)

	// Supplemental images. Failures here leave the system completed.
	if err := raster.RenderFile(tifPath, filepath.Join(dir, FileStrikePNG)); err != nil {
		logger.Warn("strike image skipped", "error", err)
	} else {
		res.Products = append(res.Products, FileStrikePNG)
	}

	if err := writeTrackPlots(dir, ensemble, consensus, p.cfg.Basin, p.cfg.RunDate); err != nil {
		logger.Warn("track overview skipped", "error", err)
	} else {
		res.Products = append(res.Products, FileTracksSVG, FileTracksPNG)
	}

	p.metrics.ProductsWritten.Add(float64(len(res.Products)))
	logger.Info("system products written", "count", len(res.Products), "dir", dir)
	return res
}

// publishLatest refreshes the stable latest/ images from the lowest-id system
// that produced each underlying product. Slots with no source image get a
// placeholder card, so latest/ is always fully populated.
func (p *Pipeline) publishLatest(results []StormResult, effectiveDate time.Time) error {
	dir := filepath.Join(p.cfg.OutputDir, latestDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	slots := []struct {
		name   string
		source string
	}{
		{latestGenesisPNG, FileStrikePNG},
		{FileStrikePNG, FileStrikePNG},
		{FileTracksPNG, FileTracksPNG},
	}

	for _, slot := range slots {
		dst := filepath.Join(dir, slot.name)
		src := firstProduct(results, slot.source)
		if src == "" {
			if err := writePlaceholder(dst, effectiveDate); err != nil {
				return fmt.Errorf("placeholder %s: %w", slot.name, err)
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("publishing %s: %w", slot.name, err)
		}
	}

	p.logger.Info("latest products published", "dir", dir)
	return nil
}

func (p *Pipeline) notify(ctx context.Context, report *RunReport) {
	if p.notifier == nil {
		return
	}
	if ctx.Err() != nil {
		p.logger.Warn("skipping product notification", "reason", ctx.Err())
		return
	}
	manifests := report.Manifests()
	if len(manifests) == 0 {
		return
	}
	if err := p.notifier.NotifyRun(ctx, manifests); err != nil {
		// Products on disk are the source of truth; a lost notification
		// never fails the run.
		p.logger.Error("product notification failed", "error", err, "manifests", len(manifests))
	}
}

// firstProduct returns the path of the named product from the first completed
// system that produced it. Results arrive in basin order, so the lowest
// system id wins.
func firstProduct(results []StormResult, name string) string {
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if slices.Contains(res.Products, name) {
			return filepath.Join(res.Dir, name)
		}
	}
	return ""
}

func writeGeoJSON(path string, fc geojson.FeatureCollection) error {
	data, err := geojson.Marshal(fc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
