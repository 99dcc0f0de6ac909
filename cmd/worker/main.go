// Worker consumes auth telemetry events from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; TELEMETRY_KAFKA_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memodams/backend/internal/config"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/telemetry/loki"
	"memodams/backend/internal/telemetry/producer"
)

const pushTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("component", "telemetry-worker")

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		return errors.New("LOKI_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := producer.NewReader(brokers, cfg.TelemetryKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()
	sink := loki.NewClient(cfg.LokiURL)

	log.Info(ctx, "consuming", "topic", cfg.TelemetryKafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	producer.Consume(ctx, reader,
		func(ctx context.Context, value []byte) error {
			pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
			defer cancel()
			return sink.Push(pushCtx, loki.EntryFromEvent(value))
		},
		func(err error) {
			log.Warn(ctx, "event not forwarded", "error", err)
		},
	)
	log.Info(context.Background(), "stopped")
	return nil
}
