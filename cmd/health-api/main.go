// Package main provides the health API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/api/handlers"
	"github.com/caretrack/go-caretrack/internal/api/middleware"
	"github.com/caretrack/go-caretrack/internal/auth"
	"github.com/caretrack/go-caretrack/internal/config"
	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
	"github.com/caretrack/go-caretrack/internal/domain/notification"
	"github.com/caretrack/go-caretrack/internal/domain/patient"
	"github.com/caretrack/go-caretrack/internal/domain/user"
	"github.com/caretrack/go-caretrack/internal/domain/vitals"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
	"github.com/caretrack/go-caretrack/internal/observability/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	// Initialize tracing
	tp, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName:    "health-api",
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

	// Connect to database
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
	authority := auth.NewJWTAuthority(cfg.JWTSecret, cfg.TokenTTL)

	// Repositories
	medRepo := medication.NewPgRepository(pool, logger)
	intakeRepo := intake.NewPgRepository(pool, logger)
	vitalsRepo := vitals.NewPgRepository(pool, logger)
	notifRepo := notification.NewPgRepository(pool, logger)
	patientRepo := patient.NewPgRepository(pool, logger)
	userRepo := user.NewPgRepository(pool, logger)

	// Services. Vital alerts flow into the notification inbox, which in
	// turn writes outbox entries picked up by the relay.
	generator := intake.NewGenerator(intakeRepo, logger)
	medSvc := medication.NewService(medRepo, generator, logger)
	intakeSvc := intake.NewService(intakeRepo, logger)
	notifSvc := notification.NewService(notifRepo, intakeSvc,
		time.Duration(cfg.LookaheadMins)*time.Minute, logger).WithMetrics(m)
	vitalsSvc := vitals.NewService(vitalsRepo, notifSvc, logger).WithMetrics(m)
	notifSvc.WithAlertSource(vitalsSvc)
	patientSvc := patient.NewService(patientRepo, medSvc, intakeSvc, vitalsSvc, logger)
	userSvc := user.NewService(userRepo, patientRepo, authority, logger)
	guard := patient.NewGuard(patientRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(userSvc, logger)
	patientHandler := handlers.NewPatientHandler(patientSvc, guard, logger)
	medHandler := handlers.NewMedicationHandler(medSvc, guard, logger)
	intakeHandler := handlers.NewIntakeHandler(intakeSvc, guard, logger)
	vitalsHandler := handlers.NewVitalsHandler(vitalsSvc, guard, logger)
	notifHandler := handlers.NewNotificationHandler(notifSvc, logger)
	doctorHandler := handlers.NewDoctorHandler(patientSvc, logger)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("health-api"))

	// Health and metrics (no auth)
	r.Get("/healthz", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(authority))

			r.Mount("/auth/me", authHandler.MeRoutes())
			r.Mount("/doctors", doctorHandler.Routes())
			r.Mount("/notifications", notifHandler.Routes())

			r.Route("/patients/{patientID}", func(r chi.Router) {
				r.Mount("/", patientHandler.Routes())
				r.Mount("/medications", medHandler.Routes())
				r.Mount("/intake", intakeHandler.Routes())
				r.Mount("/vitals", vitalsHandler.Routes())
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting health API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	if cfg.Environment == "development" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"health-api","version":"1.0.0"}`)
}
