// Package main provides the outbox relay entry point.
// Drains the transactional outbox and publishes notification events to
// Kafka topics consumed by delivery channels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/config"
	"github.com/caretrack/go-caretrack/internal/infrastructure/postgres"
	"github.com/caretrack/go-caretrack/internal/infrastructure/redpanda"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
	"github.com/caretrack/go-caretrack/internal/observability/tracing"
	"github.com/caretrack/go-caretrack/pkg/circuitbreaker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	tp, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName:    "outbox-relay",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
	})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("connected to database")

	m := metrics.New()

	// Make sure the notification topics exist before publishing
	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(context.Background()); err != nil {
		logger.Fatal("topic creation failed", zap.Error(err))
	}
	admin.Close()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.KafkaBrokers))

	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("kafka-publish"), logger)
	if err != nil {
		logger.Fatal("circuit breaker creation failed", zap.Error(err))
	}

	publisher := &guardedPublisher{
		producer: producer,
		breaker:  breaker,
		metrics:  m,
	}

	outboxCfg := postgres.DefaultOutboxConfig()
	outbox := postgres.NewOutbox(pool, publisher, outboxCfg, logger).WithMetrics(m)
	outbox.Start()

	// Housekeeping: sweep exhausted entries to the dead letter topic and
	// trim old processed rows.
	hkCtx, hkCancel := context.WithCancel(context.Background())
	go housekeeping(hkCtx, outbox, logger)

	logger.Info("outbox relay started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	hkCancel()
	outbox.Stop()
	if err := producer.Flush(context.Background()); err != nil {
		logger.Warn("producer flush failed", zap.Error(err))
	}
	logger.Info("outbox relay stopped")
}

// guardedPublisher routes publishes through the circuit breaker so a
// broker outage backs the relay off instead of burning retries.
type guardedPublisher struct {
	producer *redpanda.Producer
	breaker  *circuitbreaker.CircuitBreaker
	metrics  *metrics.Metrics
}

func (p *guardedPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	_, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.ProduceMessage(ctx, topic, key, value)
	})
	p.metrics.CircuitBreakerState.WithLabelValues("kafka-publish").Set(stateValue(p.breaker.GetState()))
	return err
}

func stateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateOpen:
		return 1
	case circuitbreaker.StateHalfOpen:
		return 2
	}
	return 0
}

func housekeeping(ctx context.Context, outbox *postgres.Outbox, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if moved, err := outbox.MoveToDeadLetter(ctx); err != nil {
				logger.Error("dead letter sweep failed", zap.Error(err))
			} else if moved > 0 {
				logger.Warn("entries moved to dead letter", zap.Int64("count", moved))
			}
			if removed, err := outbox.CleanupProcessed(ctx, 24*time.Hour); err != nil {
				logger.Error("outbox cleanup failed", zap.Error(err))
			} else if removed > 0 {
				logger.Debug("processed entries cleaned", zap.Int64("count", removed))
			}
		}
	}
}
