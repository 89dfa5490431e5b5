package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentInstances(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ObservationsLoaded.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.ObservationsLoaded))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ObservationsLoaded))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.SystemsProcessed.WithLabelValues("completed").Inc()
	m.SystemsProcessed.WithLabelValues("failed").Inc()
	m.ProductsWritten.Add(6)
	m.LastRunTimestamp.Set(12345)

	path := filepath.Join(t.TempDir(), "cyclogen.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `cyclogen_systems_processed_total{outcome="completed"} 1`)
	assert.Contains(t, text, `cyclogen_systems_processed_total{outcome="failed"} 1`)
	assert.Contains(t, text, "cyclogen_products_written_total 6")
	assert.Contains(t, text, "cyclogen_last_run_timestamp_seconds 12345")
	assert.Contains(t, text, "# TYPE cyclogen_run_duration_seconds histogram")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := NewMetricsForTesting()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cyclogen.prom"))
	require.Error(t, err)
}
