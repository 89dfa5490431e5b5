//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/cycloneoi/cyclogen/internal/adapter/ecmwf"
	"github.com/cycloneoi/cyclogen/internal/adapter/kafka"
	"github.com/cycloneoi/cyclogen/internal/config"
	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/observability"
	"github.com/cycloneoi/cyclogen/internal/pipeline"
	"github.com/cycloneoi/cyclogen/internal/strike"
)

const testProductTopic = "test-product-manifests"

// e2eBulletin is one in-basin system with a control run and two members, three
// steps each.
const e2eBulletin = `stormIdentifier,ensembleMemberNumber,validTime,latitude,longitude,pressureReducedToMeanSeaLevel,windSpeedAt10M
92S,,2026-03-01T00:00:00Z,-14.50,55.00,100200,18.5
92S,,2026-03-01T06:00:00Z,-15.00,55.40,100000,20.0
92S,,2026-03-01T12:00:00Z,-15.60,55.90,99800,22.5
92S,1,2026-03-01T00:00:00Z,-14.40,55.10,100150,19.0
92S,1,2026-03-01T06:00:00Z,-15.10,55.50,99950,21.0
92S,1,2026-03-01T12:00:00Z,-15.80,56.10,99700,23.0
92S,2,2026-03-01T00:00:00Z,-14.60,54.90,100250,18.0
92S,2,2026-03-01T06:00:00Z,-14.90,55.30,100050,19.5
92S,2,2026-03-01T12:00:00Z,-15.40,55.70,99850,21.5
`

// manifestMessage holds a deserialized manifest read from the product topic.
type manifestMessage struct {
	Manifest domain.ProductManifest
	Key      string
	Headers  map[string]string
}

// readManifest reads a single message from the consumer and deserializes it.
func readManifest(ctx context.Context, t *testing.T, consumer *kafkago.Reader) manifestMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from product topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var m domain.ProductManifest
	require.NoError(t, json.Unmarshal(msg.Value, &m), "unmarshal manifest")

	return manifestMessage{Manifest: m, Key: string(msg.Key), Headers: headers}
}

// TestNotifierRoundTrip verifies the adapter layer: kafka.Notifier publishes
// manifests that a plain consumer can read back with keys and headers intact.
func TestNotifierRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testProductTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testProductTopic,
	}
	notifier := kafka.NewNotifier(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	producedAt := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	manifests := []domain.ProductManifest{
		{
			RunDate: "20260301", EffectiveDate: "20260301", SystemID: "75S",
			Products:   []string{pipeline.FileEnsembleGeoJSON, pipeline.FileMeanGeoJSON},
			ProducedAt: producedAt,
		},
		{
			RunDate: "20260301", EffectiveDate: "20260301", SystemID: "92S",
			Products:   []string{pipeline.FileEnsembleGeoJSON, pipeline.FileMeanGeoJSON, pipeline.FileStrikeTIFF},
			ProducedAt: producedAt,
		},
	}
	require.NoError(t, notifier.NotifyRun(ctx, manifests))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testProductTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readManifest(ctx, t, consumer)
	assert.Equal(t, "20260301|75S", first.Key)
	assert.Equal(t, "75S", first.Manifest.SystemID)
	assert.Equal(t, "20260301", first.Headers["run_date"])
	ts, err := time.Parse(time.RFC3339, first.Headers["produced_at"])
	require.NoError(t, err, "produced_at should be valid RFC3339")
	assert.True(t, producedAt.Equal(ts))

	second := readManifest(ctx, t, consumer)
	assert.Equal(t, "20260301|92S", second.Key)
	assert.Len(t, second.Manifest.Products, 3)
	assert.Equal(t, "20260301", second.Manifest.EffectiveDate)
}

// TestPipelineEndToEnd wires the full run (bulletin fetch → products on disk →
// manifest publish) against a stub bulletin server and real Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testProductTopic)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ecmwf_tracks_20260301.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, e2eBulletin)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testProductTopic,
	}
	notifier := kafka.NewNotifier(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	outputDir := t.TempDir()
	metrics := observability.NewMetricsForTesting()
	source := ecmwf.NewClient(srv.URL, t.TempDir(), 10*time.Second, discardLogger(), metrics)

	runDate := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	p := pipeline.New(source, strike.New(discardLogger()), notifier, discardLogger(), metrics, pipeline.Config{
		RunDate:         runDate,
		OutputDir:       outputDir,
		Basin:           domain.SouthIndianOcean,
		MinSystemNumber: domain.MinSystemNumber,
	})

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.NoError(t, report.Results[0].Err)
	assert.Equal(t, 0, report.Failed)

	stormDir := filepath.Join(outputDir, "20260301", "storm_92S")
	for _, name := range []string{
		pipeline.FileEnsembleGeoJSON, pipeline.FileMeanGeoJSON,
		pipeline.FileStrikeTIFF, pipeline.FileStrikePNG,
		pipeline.FileTracksSVG, pipeline.FileTracksPNG,
	} {
		assert.FileExists(t, filepath.Join(stormDir, name))
	}
	for _, name := range []string{"cyclogenesis.png", "ensemble_tracks.png", "strike_probability.png"} {
		assert.FileExists(t, filepath.Join(outputDir, "latest", name))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testProductTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	mm := readManifest(ctx, t, consumer)
	assert.Equal(t, "20260301|92S", mm.Key)
	assert.Equal(t, "92S", mm.Manifest.SystemID)
	assert.Equal(t, "20260301", mm.Manifest.RunDate)
	assert.Equal(t, "20260301", mm.Manifest.EffectiveDate)
	assert.Equal(t, report.Results[0].Products, mm.Manifest.Products)

	// No second manifest: the run had a single admitted system.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected a single manifest on the product topic")
}

// ── Infrastructure helpers ──

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
