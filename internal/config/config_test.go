package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycloneoi/cyclogen/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.RunDate.IsZero())
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, domain.SouthIndianOcean, cfg.Basin)
	assert.Equal(t, domain.MinSystemNumber, cfg.MinSystemNumber)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "cyclone-products", cfg.KafkaTopic)
	assert.False(t, cfg.NotifierEnabled)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("COI_RUN_DATE", "20260214")
	t.Setenv("OUTPUT_DIR", "/srv/products")
	t.Setenv("DATA_DIR", "/srv/cache")
	t.Setenv("ECMWF_BASE_URL", "https://mirror.example.com/forecasts")
	t.Setenv("DOWNLOAD_TIMEOUT", "2m")
	t.Setenv("BASIN_LON_MIN", "30")
	t.Setenv("BASIN_LON_MAX", "90")
	t.Setenv("BASIN_LAT_MIN", "-40")
	t.Setenv("BASIN_LAT_MAX", "-5")
	t.Setenv("MIN_STORM_ID", "80")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-products")
	t.Setenv("METRICS_FILE", "/var/lib/node_exporter/cyclogen.prom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), cfg.RunDate)
	assert.Equal(t, "/srv/products", cfg.OutputDir)
	assert.Equal(t, "/srv/cache", cfg.DataDir)
	assert.Equal(t, "https://mirror.example.com/forecasts", cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, domain.BoundingBox{LonMin: 30, LonMax: 90, LatMin: -40, LatMax: -5}, cfg.Basin)
	assert.Equal(t, 80, cfg.MinSystemNumber)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-products", cfg.KafkaTopic)
	assert.True(t, cfg.NotifierEnabled)
	assert.Equal(t, "/var/lib/node_exporter/cyclogen.prom", cfg.MetricsFile)
}

func TestLoad_InvalidRunDate(t *testing.T) {
	t.Setenv("COI_RUN_DATE", "2026-02-14")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COI_RUN_DATE")
}

func TestLoad_InvalidDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}

func TestLoad_NegativeDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "-10s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}

func TestLoad_InvalidBasinValue(t *testing.T) {
	t.Setenv("BASIN_LON_MIN", "east")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASIN_LON_MIN")
}

func TestLoad_InvertedBasinLongitudes(t *testing.T) {
	t.Setenv("BASIN_LON_MIN", "120")
	t.Setenv("BASIN_LON_MAX", "20")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASIN_LON_MIN")
}

func TestLoad_InvertedBasinLatitudes(t *testing.T) {
	t.Setenv("BASIN_LAT_MIN", "0")
	t.Setenv("BASIN_LAT_MAX", "-45")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASIN_LAT_MIN")
}

func TestLoad_InvalidMinStormID(t *testing.T) {
	t.Setenv("MIN_STORM_ID", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_STORM_ID")
}

func TestLoad_BrokersImplyNotifier(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.NotifierEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}
