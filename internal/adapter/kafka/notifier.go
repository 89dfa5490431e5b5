package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cycloneoi/cyclogen/internal/config"
	"github.com/cycloneoi/cyclogen/internal/domain"
)

// Notifier announces finished products to downstream consumers.
// It implements pipeline.RunNotifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured product topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifyRun serializes and publishes one manifest per completed system in a
// single WriteMessages call. Message keys are deterministic per (run,
// system), so replays overwrite rather than duplicate on compacted topics.
func (n *Notifier) NotifyRun(ctx context.Context, manifests []domain.ProductManifest) error {
	if len(manifests) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(manifests))
	for i := range manifests {
		msg, err := serializeManifest(manifests[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	n.logger.Info("product manifests published", "count", len(msgs), "topic", n.writer.Topic)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeManifest marshals a ProductManifest into a Kafka message.
func serializeManifest(m domain.ProductManifest) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize product manifest: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_date", Value: []byte(m.RunDate)},
			{Key: "produced_at", Value: []byte(m.ProducedAt.Format(time.RFC3339))},
		},
	}, nil
}
