// Package main provides the reminder scheduler entry point.
// Runs the minute due-dose scan and the daily dose regeneration.
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
	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
	"github.com/caretrack/go-caretrack/internal/domain/notification"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
	"github.com/caretrack/go-caretrack/internal/observability/tracing"
	"github.com/caretrack/go-caretrack/internal/scheduler"
	"github.com/caretrack/go-caretrack/pkg/idempotency"
	"github.com/caretrack/go-caretrack/pkg/workerpool"
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
		ServiceName:    "reminder-scan",
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
	horizon := time.Duration(cfg.HorizonDays) * 24 * time.Hour

	medRepo := medication.NewPgRepository(pool, logger)
	intakeRepo := intake.NewPgRepository(pool, logger)
	notifRepo := notification.NewPgRepository(pool, logger)

	generator := intake.NewGenerator(intakeRepo, logger)
	intakeSvc := intake.NewService(intakeRepo, logger)
	notifSvc := notification.NewService(notifRepo, intakeSvc,
		time.Duration(cfg.LookaheadMins)*time.Minute, logger).WithMetrics(m)

	// Dedup inbox keeps overlapping scans from double-notifying
	inbox := idempotency.NewInbox(pool, idempotency.DefaultInboxConfig(), logger)
	inbox.StartCleanup()
	defer inbox.Stop()

	if recovered, err := inbox.RecoverStaleEntries(context.Background()); err != nil {
		logger.Warn("stale inbox recovery failed", zap.Error(err))
	} else if recovered > 0 {
		logger.Info("recovered stale inbox entries", zap.Int64("count", recovered))
	}

	// Worker pool fans regeneration out across medications
	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = 20
	workerPool, err := workerpool.New(poolCfg,
		scheduler.RegenWorker(medRepo, generator, horizon, m, logger), logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}
	workerPool.Start()
	defer workerPool.Stop()

	schedCfg := scheduler.DefaultConfig()
	schedCfg.ScanInterval = cfg.ScanInterval
	schedCfg.RegenInterval = cfg.RegenInterval
	schedCfg.Horizon = horizon

	sched := scheduler.New(schedCfg, intakeSvc, notifSvc, medRepo, inbox, workerPool, m, logger)
	sched.Start()

	// Run one regeneration pass on startup so a fresh deploy has events
	// materialized before the first daily tick.
	startCtx, cancel := context.WithTimeout(context.Background(), schedCfg.TickTimeout)
	if err := sched.RunRegen(startCtx); err != nil {
		logger.Warn("initial regeneration failed", zap.Error(err))
	}
	cancel()

	logger.Info("reminder scheduler started",
		zap.Duration("scan_interval", schedCfg.ScanInterval),
		zap.Duration("horizon", horizon))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	sched.Stop()
	logger.Info("reminder scheduler stopped")
}
