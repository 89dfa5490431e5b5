package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cycloneoi/cyclogen/internal/adapter/ecmwf"
	kafkaadapter "github.com/cycloneoi/cyclogen/internal/adapter/kafka"
	"github.com/cycloneoi/cyclogen/internal/config"
	"github.com/cycloneoi/cyclogen/internal/domain"
	"github.com/cycloneoi/cyclogen/internal/observability"
	"github.com/cycloneoi/cyclogen/internal/pipeline"
	"github.com/cycloneoi/cyclogen/internal/strike"
)

func main() {
	// .env is optional; deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	runDate := cfg.RunDate
	if runDate.IsZero() {
		runDate = domain.Today()
	}

	source := ecmwf.NewClient(cfg.BaseURL, cfg.DataDir, cfg.DownloadTimeout, logger, metrics)
	aggregator := strike.New(logger)

	// Product notifications are feature-flagged via KAFKA_BROKERS.
	var notifier pipeline.RunNotifier
	if cfg.NotifierEnabled {
		kn := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := kn.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = kn
		logger.Info("product notifications enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("product notifications disabled")
	}

	p := pipeline.New(source, aggregator, notifier, logger, metrics, pipeline.Config{
		RunDate:         runDate,
		OutputDir:       cfg.OutputDir,
		Basin:           cfg.Basin,
		MinSystemNumber: cfg.MinSystemNumber,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)

	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			logger.Error("metrics export failed", "error", werr, "path", cfg.MetricsFile)
		}
	}

	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			logger.Error("forecast data unavailable, no products written", "error", err)
		} else {
			logger.Error("run failed", "error", err)
		}
		return 1
	}

	if report.Failed > 0 {
		logger.Warn("run completed with failed systems",
			"failed", report.Failed, "systems", len(report.Results))
	}
	return 0
}
