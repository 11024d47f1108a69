package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrSchedulerFull is returned when all worker slots are busy.
var ErrSchedulerFull = errors.New("scheduler at capacity")

// ErrSchedulerClosed is returned when submitting after Shutdown.
var ErrSchedulerClosed = errors.New("scheduler is shut down")

// Scheduler runs execution continuations on a bounded pool of goroutines
// and keeps a cancel handle per in-flight execution.
type Scheduler struct {
	slots  *semaphore.Weighted
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with the given number of concurrent
// execution slots.
func NewScheduler(maxConcurrent int64, logger *slog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	return &Scheduler{
		slots:   semaphore.NewWeighted(maxConcurrent),
		logger:  logger.With("module", "scheduler"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit runs fn asynchronously under a fresh cancellable context derived
// from base. It never blocks: when every slot is busy it returns
// ErrSchedulerFull and the caller decides what to do with the overflow.
func (s *Scheduler) Submit(base context.Context, executionID string, fn func(ctx context.Context)) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return ErrSchedulerClosed
	}

	if !s.slots.TryAcquire(1) {
		s.mu.Unlock()

		return ErrSchedulerFull
	}

	ctx, cancel := context.WithCancel(base)
	s.cancels[executionID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, executionID)
			s.mu.Unlock()

			cancel()
			s.slots.Release(1)
			s.wg.Done()
		}()

		fn(ctx)
	}()

	return nil
}

// Cancel aborts the in-flight execution's context. Returns false when the
// execution is not currently running here.
func (s *Scheduler) Cancel(executionID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[executionID]
	s.mu.Unlock()

	if ok {
		cancel()
	}

	return ok
}

// Running reports whether the execution currently holds a slot.
func (s *Scheduler) Running(executionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.cancels[executionID]

	return ok
}

// Shutdown stops accepting work, cancels everything in flight, and waits
// for the continuations to drain.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true

	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
