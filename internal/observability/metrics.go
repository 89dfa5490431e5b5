package observability

import (
	"bytes"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a
// product-generation run.
type Metrics struct {
	SystemsProcessed   *prometheus.CounterVec // labels: outcome={completed,failed,skipped}
	ObservationsLoaded prometheus.Counter
	MalformedRows      prometheus.Counter
	ProductsWritten    prometheus.Counter

	BulletinFetchSeconds prometheus.Histogram
	StrikeGridSeconds    prometheus.Histogram
	RunDurationSeconds   prometheus.Histogram

	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates all run metrics on a fresh registry. The job is a batch
// process, so metrics leave through WriteTextfile rather than a scrape
// endpoint.
func NewMetrics() *Metrics {
	m := &Metrics{
		SystemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyclogen",
			Name:      "systems_processed_total",
			Help:      "Tropical systems handled during the run, by outcome.",
		}, []string{"outcome"}),
		ObservationsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclogen",
			Name:      "observations_loaded_total",
			Help:      "Forecast track rows decoded from the bulletin.",
		}),
		MalformedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclogen",
			Name:      "malformed_rows_total",
			Help:      "Bulletin rows dropped because a field failed to parse.",
		}),
		ProductsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyclogen",
			Name:      "products_written_total",
			Help:      "Product files written under the run directory.",
		}),
		BulletinFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyclogen",
			Name:      "bulletin_fetch_duration_seconds",
			Help:      "Time spent downloading and caching the daily bulletin.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StrikeGridSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyclogen",
			Name:      "strike_grid_duration_seconds",
			Help:      "Time spent computing one strike-probability grid.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RunDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cyclogen",
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of the product-generation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cyclogen",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SystemsProcessed,
		m.ObservationsLoaded,
		m.MalformedRows,
		m.ProductsWritten,
		m.BulletinFetchSeconds,
		m.StrikeGridSeconds,
		m.RunDurationSeconds,
		m.LastRunTimestamp,
	)

	return m
}

// NewMetricsForTesting returns an independent Metrics instance. Every
// instance carries its own registry, so tests may create as many as they
// need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// WriteTextfile exports the current metric values in Prometheus text format,
// suitable for the node_exporter textfile collector. The write is atomic:
// the export lands in a temp file first and is renamed into place.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metric family %q: %w", mf.GetName(), err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing metrics file: %w", err)
	}
	return nil
}
