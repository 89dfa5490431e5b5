package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cycloneoi/cyclogen/internal/domain"
)

// Default bulletin endpoint: the ECMWF open-data mirror that publishes the
// daily essential tropical-cyclone track export.
const defaultBaseURL = "https://data.ecmwf.int/forecasts"

// Config holds all job settings, populated from environment variables.
type Config struct {
	RunDate   time.Time // zero = current UTC date
	OutputDir string
	DataDir   string

	BaseURL         string
	DownloadTimeout time.Duration

	Basin           domain.BoundingBox
	MinSystemNumber int

	LogLevel  string
	LogFormat string

	// Product notifier configuration. The notifier runs only when
	// KAFKA_BROKERS is set.
	KafkaBrokers    []string
	KafkaTopic      string
	NotifierEnabled bool

	// MetricsFile, when set, receives a Prometheus textfile export at the
	// end of the run.
	MetricsFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	runDate, err := parseRunDate(os.Getenv("COI_RUN_DATE"))
	if err != nil {
		return nil, err
	}

	timeoutStr := envOrDefault("DOWNLOAD_TIMEOUT", "60s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		return nil, errors.New("invalid DOWNLOAD_TIMEOUT")
	}

	basin, err := parseBasin()
	if err != nil {
		return nil, err
	}

	minSystem, err := parseMinSystemNumber()
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		RunDate:   runDate,
		OutputDir: envOrDefault("OUTPUT_DIR", "output"),
		DataDir:   envOrDefault("DATA_DIR", "data"),

		BaseURL:         envOrDefault("ECMWF_BASE_URL", defaultBaseURL),
		DownloadTimeout: timeout,

		Basin:           basin,
		MinSystemNumber: minSystem,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		KafkaBrokers:    brokers,
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "cyclone-products"),
		NotifierEnabled: len(brokers) > 0,

		MetricsFile: os.Getenv("METRICS_FILE"),
	}

	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("ECMWF_BASE_URL is required")
	}
	if cfg.NotifierEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func parseRunDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, errors.New("COI_RUN_DATE must be an 8-digit YYYYMMDD date")
	}
	return d.UTC(), nil
}

// parseBasin reads the basin envelope overrides, defaulting to the South
// Indian Ocean product box.
func parseBasin() (domain.BoundingBox, error) {
	box := domain.SouthIndianOcean

	fields := []struct {
		env string
		dst *float64
	}{
		{"BASIN_LON_MIN", &box.LonMin},
		{"BASIN_LON_MAX", &box.LonMax},
		{"BASIN_LAT_MIN", &box.LatMin},
		{"BASIN_LAT_MAX", &box.LatMax},
	}
	for _, f := range fields {
		s := os.Getenv(f.env)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("invalid %s: %q", f.env, s)
		}
		*f.dst = v
	}

	if box.LonMin >= box.LonMax {
		return domain.BoundingBox{}, errors.New("BASIN_LON_MIN must be less than BASIN_LON_MAX")
	}
	if box.LatMin >= box.LatMax {
		return domain.BoundingBox{}, errors.New("BASIN_LAT_MIN must be less than BASIN_LAT_MAX")
	}
	return box, nil
}

func parseMinSystemNumber() (int, error) {
	s := os.Getenv("MIN_STORM_ID")
	if s == "" {
		return domain.MinSystemNumber, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("MIN_STORM_ID must be a non-negative integer")
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
