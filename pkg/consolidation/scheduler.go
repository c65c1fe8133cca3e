package consolidation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultInterval    = time.Hour
	defaultConcurrency = 4

	// leaseRetries caps attempts to acquire a contended user lease before
	// skipping that user until the next cycle.
	leaseRetries      = 3
	leaseRetryBackoff = 50 * time.Millisecond
)

// Scheduler periodically runs the engine for every known user.
type Scheduler struct {
	engine      *Engine
	interval    time.Duration
	concurrency int
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerConfig tunes the scheduler. Zero values take defaults.
type SchedulerConfig struct {
	// Interval between cycles. Defaults to one hour.
	Interval time.Duration

	// Concurrency bounds how many users consolidate at once. Defaults to 4.
	Concurrency int
}

// NewScheduler wires a scheduler around an engine.
func NewScheduler(engine *Engine, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:      engine,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start launches the background loop. It returns immediately; the loop runs
// until Stop is called or ctx is canceled. Calling Start twice is an error
// only in the sense that the first loop keeps running; the second call is
// ignored.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// runCycle consolidates every known user through a bounded worker pool.
func (s *Scheduler) runCycle(ctx context.Context) {
	users, err := s.engine.store.ListUsers(ctx)
	if err != nil {
		s.logger.Warn("consolidation cycle: user enumeration failed", "error", err)
		return
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, userID := range users {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runUser(ctx, userID)
		}(userID)
	}
	wg.Wait()
}

// runUser runs one batch, retrying with backoff while the engine's per-user
// lease is contended. Contention past the retry cap skips the user until the
// next cycle.
func (s *Scheduler) runUser(ctx context.Context, userID string) {
	var err error
	for attempt := 0; attempt < leaseRetries; attempt++ {
		if _, err = s.engine.Run(ctx, userID); !errors.Is(err, ErrLeaseContended) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(leaseRetryBackoff << attempt):
		}
	}
	if errors.Is(err, ErrLeaseContended) {
		s.logger.Warn("consolidation lease contended, skipping until next cycle",
			"user_id", userID)
		return
	}
	if err != nil {
		s.logger.Warn("consolidation run failed", "user_id", userID, "error", err)
		return
	}

	if patterns := s.engine.DetectPatterns(ctx, userID); len(patterns) > 0 {
		s.logger.Info("behavioral patterns detected",
			"user_id", userID, "count", len(patterns))
	}
}
