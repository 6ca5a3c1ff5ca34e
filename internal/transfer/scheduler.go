package transfer

import (
	"context"
	"sync"
)

// Phase names the coarse state of a transfer session. Phases exist for
// introspection and logging; correctness is carried by the scheduler's
// bounded channel, not by phase transitions.
type Phase int32

// Transfer phases
const (
	// PhaseFilling means the producer is still emitting chunks
	PhaseFilling Phase = iota

	// PhaseDraining means emission has ended and in-flight operations are resolving
	PhaseDraining

	// PhaseCommitting means the final commit or finalize call is in progress
	PhaseCommitting

	// PhaseDone means the transfer produced its successful terminal outcome
	PhaseDone

	// PhaseFailed means the transfer produced its failed terminal outcome
	PhaseFailed
)

// String returns the human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDraining:
		return "draining"
	case PhaseCommitting:
		return "committing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "filling"
	}
}

// Operation is one chunk's network call. It must produce exactly one
// terminal outcome: a nil return or an error.
type Operation func(ctx context.Context) error

// Scheduler is a bounded-concurrency admission queue. Launch admits an
// operation when an in-flight slot is free and dispatches it on its own
// goroutine; the slot channel of capacity limit is both the concurrency
// bound and the drain signal.
//
// The first permanent failure latches: admission stops, but operations
// already dispatched always run to their terminal outcome. No result is
// ever discarded.
type Scheduler struct {
	slots chan struct{}
	limit int

	wg sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewScheduler creates a scheduler that keeps at most limit operations in
// flight.
func NewScheduler(limit int) *Scheduler {
	if limit <= 0 {
		limit = 1
	}
	return &Scheduler{
		slots: make(chan struct{}, limit),
		limit: limit,
	}
}

// Launch admits op, blocking until an in-flight slot frees. It returns
// immediately with the latched terminal error if a previous operation
// failed permanently, or the context error if ctx is done first. A nil
// return means the operation was dispatched.
func (s *Scheduler) Launch(ctx context.Context, op Operation) error {
	if err := s.Err(); err != nil {
		return err
	}

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// A failure may have latched while this call was blocked.
	if err := s.Err(); err != nil {
		<-s.slots
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()

		if err := op(ctx); err != nil {
			s.fail(err)
		}
	}()

	return nil
}

// Wait blocks until every dispatched operation has resolved and returns the
// first terminal error, if any. In-flight operations are always allowed to
// drain, even after a failure.
func (s *Scheduler) Wait() error {
	s.wg.Wait()
	return s.Err()
}

// Err returns the latched terminal error without waiting.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Limit returns the concurrency limit.
func (s *Scheduler) Limit() int {
	return s.limit
}

// InFlight returns the number of operations currently holding a slot.
// Intended for tests; the value is immediately stale.
func (s *Scheduler) InFlight() int {
	return len(s.slots)
}

// fail latches the first terminal error. Later errors are ignored: the
// first unrecoverable error wins.
func (s *Scheduler) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
