package ecmwf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/observability"
)

// Client fetches and caches the daily essential-tracks bulletin published by
// the ECMWF open-data service.
type Client struct {
	baseURL    string
	dataDir    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a bulletin client. Downloads are bounded by timeout and
// cached compressed under dataDir.
func NewClient(baseURL, dataDir string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		dataDir: dataDir,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Download ensures the bulletin for runDate is cached locally and returns a
// marker for it. When the run date's bulletin has not been published yet
// (HTTP 404) the previous day's bulletin is used and the marker's
// EffectiveDate trails RunDate accordingly. An existing cache file
// short-circuits the fetch, so re-runs never touch the network.
func (c *Client) Download(ctx context.Context, runDate time.Time) (domain.SourceMarker, error) {
	start := time.Now()
	defer func() {
		c.metrics.BulletinFetchSeconds.Observe(time.Since(start).Seconds())
	}()

	candidates := []time.Time{runDate, runDate.AddDate(0, 0, -1)}
	for i, date := range candidates {
		path := c.cachePath(date)

		if _, err := os.Stat(path); err == nil {
			c.logger.Info("bulletin already cached", "date", date.Format("20060102"), "path", path)
			return domain.SourceMarker{RunDate: runDate, EffectiveDate: date, Path: path}, nil
		}

		found, err := c.fetch(ctx, date, path)
		if err != nil {
			return domain.SourceMarker{}, err
		}
		if found {
			return domain.SourceMarker{RunDate: runDate, EffectiveDate: date, Path: path}, nil
		}
		if i == 0 {
			c.logger.Warn("bulletin not yet published, falling back to previous day",
				"date", date.Format("20060102"))
		}
	}

	return domain.SourceMarker{}, fmt.Errorf("%w: no bulletin published for %s or %s",
		domain.ErrDataUnavailable,
		candidates[0].Format("20060102"), candidates[1].Format("20060102"))
}

// Load decompresses and decodes a cached bulletin into observations.
// Malformed rows are dropped and counted, never fatal; a missing or
// undecodable cache file is.
func (c *Client) Load(marker domain.SourceMarker) ([]domain.Observation, error) {
	f, err := os.Open(marker.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cached bulletin: %v", domain.ErrDataUnavailable, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing bulletin: %v", domain.ErrDataUnavailable, err)
	}
	defer zr.Close()

	observations, dropped, err := DecodeBulletin(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	c.metrics.ObservationsLoaded.Add(float64(len(observations)))
	if dropped > 0 {
		c.metrics.MalformedRows.Add(float64(dropped))
		c.logger.Warn("dropped malformed bulletin rows", "count", dropped, "path", marker.Path)
	}
	c.logger.Info("bulletin loaded", "observations", len(observations), "path", marker.Path)

	return observations, nil
}

// fetch downloads one date's bulletin into path. Returns false without error
// when the server reports 404, letting the caller fall back. Any other
// failure is fatal for the run.
func (c *Client) fetch(ctx context.Context, date time.Time, path string) (bool, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, remoteName(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("%w: creating bulletin request: %v", domain.ErrDataUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: fetching bulletin: %v", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("%w: bulletin endpoint returned status %d for %s",
			domain.ErrDataUnavailable, resp.StatusCode, u)
	}

	n, err := c.cache(resp.Body, path)
	if err != nil {
		return false, fmt.Errorf("%w: caching bulletin: %v", domain.ErrDataUnavailable, err)
	}

	c.logger.Info("bulletin downloaded", "url", u, "bytes", n, "path", path)
	return true, nil
}

// cache compresses body into path atomically: the bytes land in a temp file
// in the same directory and are renamed into place.
func (c *Client) cache(body io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return 0, err
	}

	n, err := io.Copy(zw, body)
	if err != nil {
		zw.Close()
		tmp.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	return n, os.Rename(tmp.Name(), path)
}

func (c *Client) cachePath(date time.Time) string {
	return filepath.Join(c.dataDir, "tracks", fmt.Sprintf("ecmwf_%s.csv.zst", date.Format("20060102")))
}

func remoteName(date time.Time) string {
	return fmt.Sprintf("ecmwf_tracks_%s.csv", date.Format("20060102"))
}
