// Package scheduler runs the periodic jobs behind medication
// reminders: the minute due-dose scan and the daily dose regeneration.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
	"github.com/caretrack/go-caretrack/internal/domain/notification"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
	"github.com/caretrack/go-caretrack/pkg/idempotency"
	"github.com/caretrack/go-caretrack/pkg/workerpool"
)

// DueScanner lists pending dose events across all patients.
type DueScanner interface {
	PendingWindowAll(ctx context.Context, from, to time.Time) ([]intake.DueEvent, error)
}

// ReminderSink creates reminder notifications for due doses.
type ReminderSink interface {
	CreateMedicationReminder(ctx context.Context, in notification.ReminderInput) (*notification.Notification, error)
}

// MedicationSource supplies the active medications and their schedules
// for regeneration.
type MedicationSource interface {
	ListActive(ctx context.Context) ([]medication.Medication, error)
	SchedulesFor(ctx context.Context, medicationID string) ([]medication.DoseSchedule, error)
}

// Deduper guards reminder dispatch against overlapping scans.
type Deduper interface {
	Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
}

// Submitter accepts regeneration tasks; backed by a worker pool in
// production.
type Submitter interface {
	Submit(task *workerpool.Task) error
}

// Config holds scheduler timing.
type Config struct {
	// ScanInterval is how often due doses are scanned.
	ScanInterval time.Duration
	// RegenInterval is how often dose events are regenerated.
	RegenInterval time.Duration
	// Horizon is how far ahead regeneration materializes events.
	Horizon time.Duration
	// TickTimeout bounds a single scan or regen pass.
	TickTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ScanInterval:  time.Minute,
		RegenInterval: 24 * time.Hour,
		Horizon:       7 * 24 * time.Hour,
		TickTimeout:   5 * time.Minute,
	}
}

// Scheduler drives the periodic jobs. At most one scan and one regen
// run at a time; a tick that finds the previous pass still running is
// skipped.
type Scheduler struct {
	config    Config
	scanner   DueScanner
	reminders ReminderSink
	meds      MedicationSource
	dedup     Deduper
	pool      Submitter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	scanRunning  int32
	regenRunning int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, scanner DueScanner, reminders ReminderSink, meds MedicationSource,
	dedup Deduper, pool Submitter, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultConfig().ScanInterval
	}
	if cfg.RegenInterval <= 0 {
		cfg.RegenInterval = DefaultConfig().RegenInterval
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultConfig().Horizon
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = DefaultConfig().TickTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		config:    cfg,
		scanner:   scanner,
		reminders: reminders,
		meds:      meds,
		dedup:     dedup,
		pool:      pool,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the scan and regen loops.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.loop("due_scan", s.config.ScanInterval, s.RunDueScan)
	go s.loop("dose_regen", s.config.RegenInterval, s.RunRegen)
	s.logger.Info("scheduler started",
		zap.Duration("scan_interval", s.config.ScanInterval),
		zap.Duration("regen_interval", s.config.RegenInterval))
}

// Stop cancels the loops and waits for in-flight passes.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(name string, interval time.Duration, run func(context.Context) error) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, s.config.TickTimeout)
			if err := run(ctx); err != nil && !errors.Is(err, errSkipped) {
				s.logger.Error("scheduled pass failed",
					zap.String("job", name), zap.Error(err))
			}
			cancel()
		}
	}
}

// errSkipped marks a tick that found the previous pass still running.
var errSkipped = errors.New("previous pass still running")

// RunDueScan finds doses that became due since the last tick and
// dispatches a reminder for each. Dispatch is deduplicated through the
// idempotency inbox, so overlapping scans cannot double-notify.
func (s *Scheduler) RunDueScan(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.scanRunning, 0, 1) {
		return errSkipped
	}
	defer atomic.StoreInt32(&s.scanRunning, 0)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("due scan panicked", zap.Any("panic", rec))
		}
	}()

	start := s.now()
	now := start.UTC()
	due, err := s.scanner.PendingWindowAll(ctx, now.Add(-s.config.ScanInterval), now)
	if err != nil {
		return fmt.Errorf("scanning due doses: %w", err)
	}

	var dispatched int
	for _, d := range due {
		if err := s.dispatch(ctx, d); err != nil {
			s.logger.Warn("reminder dispatch failed",
				zap.String("event_id", d.ID), zap.Error(err))
			continue
		}
		dispatched++
	}

	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.metrics.RemindersDispatched.Add(float64(dispatched))
	}
	if len(due) > 0 {
		s.logger.Info("due scan complete",
			zap.Int("due", len(due)), zap.Int("dispatched", dispatched))
	}
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, d intake.DueEvent) error {
	key := idempotency.GenerateKey(d.PatientID, d.MedicationID, d.ID, d.ScheduledTime)
	payload, _ := json.Marshal(map[string]string{"event_id": d.ID})
	_, err := s.dedup.Process(ctx, key, "reminder_dispatch", payload,
		func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			n, err := s.reminders.CreateMedicationReminder(ctx, notification.ReminderInput{
				PatientID:      d.PatientID,
				EventID:        d.ID,
				MedicationID:   d.MedicationID,
				MedicationName: d.MedicationName,
				Dosage:         d.Dosage,
				ScheduledTime:  d.ScheduledTime,
			})
			if err != nil {
				return nil, err
			}
			if n == nil {
				return json.RawMessage(`{"suppressed":true}`), nil
			}
			return json.Marshal(map[string]string{"notification_id": n.ID})
		})
	if errors.Is(err, idempotency.ErrMessageInProgress) {
		return nil
	}
	return err
}

// RunRegen materializes pending dose events for every active
// medication over the horizon. Each medication is an independent task
// on the worker pool; one failure never stops the rest.
func (s *Scheduler) RunRegen(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.regenRunning, 0, 1) {
		return errSkipped
	}
	defer atomic.StoreInt32(&s.regenRunning, 0)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("dose regen panicked", zap.Any("panic", rec))
		}
	}()

	start := s.now()
	meds, err := s.meds.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active medications: %w", err)
	}

	var submitted int
	for _, med := range meds {
		task := &workerpool.Task{
			ID:      "regen-" + med.ID,
			Payload: med,
			Context: ctx,
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn("regen task rejected",
				zap.String("medication_id", med.ID), zap.Error(err))
			continue
		}
		submitted++
	}

	if s.metrics != nil {
		s.metrics.RegenDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("dose regeneration submitted",
		zap.Int("medications", len(meds)), zap.Int("submitted", submitted))
	return nil
}

// RegenWorker returns the worker function the pool runs for regen
// tasks.
func RegenWorker(meds MedicationSource, generator medication.DoseGenerator,
	horizon time.Duration, m *metrics.Metrics, logger *zap.Logger) workerpool.WorkerFunc {
	return func(ctx context.Context, task *workerpool.Task) *workerpool.Result {
		med, ok := task.Payload.(medication.Medication)
		if !ok {
			return &workerpool.Result{TaskID: task.ID, Success: false,
				Error: fmt.Errorf("unexpected payload type %T", task.Payload)}
		}
		schedules, err := meds.SchedulesFor(ctx, med.ID)
		if err != nil {
			return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
		}
		inserted, err := generator.GenerateForMedication(ctx, med, schedules, horizon)
		if err != nil {
			return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
		}
		if m != nil {
			m.DoseEventsGenerated.Add(float64(inserted))
		}
		if inserted > 0 {
			logger.Debug("dose events generated",
				zap.String("medication_id", med.ID), zap.Int("inserted", inserted))
		}
		return &workerpool.Result{TaskID: task.ID, Success: true, Data: inserted}
	}
}
