package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is one periodic sync task, such as the fulfillment poll
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// SyncTriggerConfig holds configuration for the periodic sync trigger
type SyncTriggerConfig struct {
	// Interval between runs
	Interval time.Duration
	// RunTimeout bounds a single run of all jobs; zero means no deadline
	RunTimeout time.Duration
	// RunOnStart runs the jobs once right after Start
	RunOnStart bool
}

// DefaultSyncTriggerConfig returns default trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval: 5 * time.Minute,
	}
}

// Validate checks the configuration
func (c SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SyncTrigger runs sync jobs on a fixed interval. Runs never overlap; a tick
// that arrives while a run is in progress is dropped.
type SyncTrigger struct {
	config SyncTriggerConfig
	jobs   []Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inRun     atomic.Bool
	runs      atomic.Int64
}

// NewSyncTrigger creates a trigger for the given jobs, run in order
func NewSyncTrigger(config SyncTriggerConfig, logger *zap.Logger, jobs ...Job) (*SyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{config: config, jobs: jobs, logger: logger}, nil
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("jobs", len(t.jobs)),
	)
	return nil
}

// Stop stops the trigger and waits for a run in progress to finish
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runs returns the number of completed runs
func (t *SyncTrigger) Runs() int64 {
	return t.runs.Load()
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.logRun(t.RunOnce(ctx))
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.logRun(t.RunOnce(ctx))
		}
	}
}

func (t *SyncTrigger) logRun(err error) {
	if errors.Is(err, ErrRunInProgress) {
		t.logger.Debug("Skipping tick, previous run still in progress")
	}
}

// RunOnce runs every job once. A failing job is logged and the next job
// still runs; the first error is returned.
func (t *SyncTrigger) RunOnce(ctx context.Context) error {
	if !t.inRun.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer t.inRun.Store(false)

	if t.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.RunTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	start := time.Now()
	var firstErr error
	for _, job := range t.jobs {
		if ctx.Err() != nil {
			break
		}
		if err := job.Run(ctx); err != nil {
			t.logger.Error("Sync job failed",
				zap.String("run_id", runID),
				zap.String("job", job.Name),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", job.Name, err)
			}
		}
	}
	t.runs.Add(1)
	t.logger.Info("Sync run finished",
		zap.String("run_id", runID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return firstErr
}
