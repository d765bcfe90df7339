package service

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/rs/zerolog"
)

// RolloverWorker periodically closes expired active periods and rolls them into their successors
type RolloverWorker struct {
	periodService *PeriodService
	periodRepo    domain.PeriodRepository
	logger        zerolog.Logger
	interval      time.Duration
	batchSize     int
	stopCh        chan struct{}
	doneCh        chan struct{}
	mu            sync.Mutex
	running       bool
}

// RolloverWorkerConfig holds configuration for the rollover worker
type RolloverWorkerConfig struct {
	Interval  time.Duration // How often to sweep
	BatchSize int           // Max expired periods handled per sweep
}

// DefaultRolloverWorkerConfig returns the default sweep settings
func DefaultRolloverWorkerConfig() RolloverWorkerConfig {
	return RolloverWorkerConfig{
		Interval:  1 * time.Hour,
		BatchSize: 500,
	}
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Expired int
	Rolled  int
	Failed  int
}

// NewRolloverWorker creates a new rollover worker
func NewRolloverWorker(
	periodService *PeriodService,
	periodRepo domain.PeriodRepository,
	logger zerolog.Logger,
	config RolloverWorkerConfig,
) *RolloverWorker {
	defaults := DefaultRolloverWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &RolloverWorker{
		periodService: periodService,
		periodRepo:    periodRepo,
		logger:        logger.With().Str("component", "rollover_worker").Logger(),
		interval:      config.Interval,
		batchSize:     config.BatchSize,
	}
}

// Start begins the background sweep. Calling it again after Stop starts a fresh run.
func (w *RolloverWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	w.stopCh, w.doneCh = stop, done
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("Starting rollover worker")

	go w.run(ctx, stop, done)
}

// Stop gracefully stops the rollover worker and waits for the current run to exit.
// It is safe to call more than once and from several goroutines.
func (w *RolloverWorker) Stop() {
	w.mu.Lock()
	done := w.doneCh
	stopping := w.running
	if stopping {
		w.running = false
		close(w.stopCh)
	}
	w.mu.Unlock()

	if done == nil {
		return
	}
	if stopping {
		w.logger.Info().Msg("Stopping rollover worker")
	}
	<-done
	if stopping {
		w.logger.Info().Msg("Rollover worker stopped")
	}
}

func (w *RolloverWorker) run(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer func() {
		w.mu.Lock()
		if w.doneCh == done {
			w.running = false
		}
		w.mu.Unlock()
	}()

	// Sweep immediately on startup
	w.sweep(ctx, stop)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.sweep(ctx, stop)
		}
	}
}

// Sweep rolls every expired active period found in one batch. Failures are logged and
// left for the next sweep or the owner's next read.
func (w *RolloverWorker) Sweep(ctx context.Context) SweepResult {
	w.mu.Lock()
	var stop <-chan struct{}
	if w.running {
		stop = w.stopCh
	}
	w.mu.Unlock()
	return w.sweep(ctx, stop)
}

// sweep stops early when stop closes; a nil stop never does
func (w *RolloverWorker) sweep(ctx context.Context, stop <-chan struct{}) SweepResult {
	startTime := time.Now()
	var result SweepResult

	expired, err := w.periodRepo.ListExpiredActive(ctx, w.periodService.now(), w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list expired periods")
		return result
	}
	result.Expired = len(expired)

	for _, p := range expired {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Context cancelled, stopping sweep")
			return result
		case <-stop:
			w.logger.Info().Msg("Stop signal received, stopping sweep")
			return result
		default:
		}

		current, err := w.periodService.GetOrCreateActive(ctx, p.OwnerID, p.Kind)
		if err != nil {
			w.logger.Error().
				Err(err).
				Str("owner_id", p.OwnerID.String()).
				Str("period_id", p.ID.String()).
				Str("kind", string(p.Kind)).
				Msg("Failed to roll expired period")
			result.Failed++
			continue
		}
		result.Rolled++

		w.logger.Debug().
			Str("owner_id", p.OwnerID.String()).
			Str("closed_period_id", p.ID.String()).
			Str("period_id", current.ID.String()).
			Msg("Rolled expired period")
	}

	w.logger.Info().
		Int("expired", result.Expired).
		Int("rolled", result.Rolled).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed rollover sweep")
	return result
}

// IsRunning returns whether the worker is currently running
func (w *RolloverWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
