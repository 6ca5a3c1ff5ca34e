// Package retry implements the retry-policy filter chain that wraps every
// service call.
//
// Policies are pure decision functions consulted in order by a single driver
// loop: the first applicable decision wins. Delays, endpoint failover, and
// the wall-clock execution budget are all decided here; the driver never
// cancels a call already in transit, it only declines to retry it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
)

// Location identifies which service endpoint an attempt targets.
type Location int

// Service locations
const (
	// LocationPrimary targets the primary endpoint
	LocationPrimary Location = iota

	// LocationSecondary targets the secondary (read) endpoint
	LocationSecondary
)

// String returns the human-readable name of the location.
func (l Location) String() string {
	if l == LocationSecondary {
		return "secondary"
	}
	return "primary"
}

// State carries the per-operation retry context consulted by policies:
// attempt count, elapsed wall-clock time, and the current endpoint.
type State struct {
	// Attempt is the zero-based index of the attempt that just failed
	Attempt int

	// Elapsed is the wall-clock time spent on the operation so far
	Elapsed time.Duration

	// Location is the endpoint the failed attempt targeted
	Location Location
}

// decisionKind discriminates Decision values.
type decisionKind int

const (
	kindPass decisionKind = iota
	kindRetry
	kindSwitch
	kindStop
)

// Decision is a policy's verdict on a failed attempt.
type Decision struct {
	kind  decisionKind
	delay time.Duration
}

// Pass defers to the next policy in the chain.
func Pass() Decision { return Decision{kind: kindPass} }

// RetryAfter retries the attempt after the given delay.
func RetryAfter(delay time.Duration) Decision { return Decision{kind: kindRetry, delay: delay} }

// SwitchEndpoint retries immediately against the other endpoint without
// consuming an attempt.
func SwitchEndpoint() Decision { return Decision{kind: kindSwitch} }

// GiveUp stops retrying and surfaces the error.
func GiveUp() Decision { return Decision{kind: kindStop} }

// Delay returns the delay attached to a retry decision.
func (d Decision) Delay() time.Duration { return d.delay }

// IsRetry reports whether the decision schedules another attempt.
func (d Decision) IsRetry() bool { return d.kind == kindRetry }

// IsSwitch reports whether the decision switches endpoints.
func (d Decision) IsSwitch() bool { return d.kind == kindSwitch }

// IsGiveUp reports whether the decision stops the operation.
func (d Decision) IsGiveUp() bool { return d.kind == kindStop }

// IsPass reports whether the decision defers to the next policy.
func (d Decision) IsPass() bool { return d.kind == kindPass }

// Policy decides what to do with a failed attempt.
type Policy interface {
	// Decide inspects the failed attempt and returns the policy's verdict.
	// Policies must be pure: no sleeping, no I/O.
	Decide(state State, err error) Decision
}

// Exponential retries transient errors with delay = Base * 2^attempt,
// capped at Cap, for at most MaxAttempts attempts.
type Exponential struct {
	// Base is the delay before the first retry
	Base time.Duration

	// Cap bounds the delay regardless of attempt count
	Cap time.Duration

	// MaxAttempts is the total number of attempts allowed
	MaxAttempts int
}

// Decide implements Policy.
func (p Exponential) Decide(state State, err error) Decision {
	if !Retryable(err) {
		return GiveUp()
	}
	if state.Attempt+1 >= p.MaxAttempts {
		return GiveUp()
	}
	return RetryAfter(p.delay(state.Attempt))
}

// delay computes the capped exponential delay for the given attempt.
func (p Exponential) delay(attempt int) time.Duration {
	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Cap {
			return p.Cap
		}
	}
	if delay > p.Cap {
		return p.Cap
	}
	return delay
}

// Linear retries transient errors with a constant delay for at most
// MaxAttempts attempts.
type Linear struct {
	// Delay is the constant delay between attempts
	Delay time.Duration

	// MaxAttempts is the total number of attempts allowed
	MaxAttempts int
}

// Decide implements Policy.
func (p Linear) Decide(state State, err error) Decision {
	if !Retryable(err) {
		return GiveUp()
	}
	if state.Attempt+1 >= p.MaxAttempts {
		return GiveUp()
	}
	return RetryAfter(p.Delay)
}

// Failover lets read-only operations fail over from the primary to the
// secondary endpoint. It passes on everything else, deferring delay
// decisions to the policies after it in the chain.
type Failover struct {
	// Enabled is true when the location mode allows secondary reads
	Enabled bool

	// ReadOnly is true when the wrapped operation has no side effects
	ReadOnly bool
}

// Decide implements Policy. A transient failure or a not-found response on
// the primary switches the operation to the secondary; a failed secondary
// attempt is left to the rest of the chain.
func (p Failover) Decide(state State, err error) Decision {
	if !p.Enabled || !p.ReadOnly || state.Location != LocationPrimary {
		return Pass()
	}
	if Retryable(err) || errors.Is(err, bloberrors.ErrBlobNotFound) {
		return SwitchEndpoint()
	}
	return Pass()
}

// Retryable classifies an error as transient. Validation errors, integrity
// failures, and context cancellation are terminal; typed service errors are
// classified by status code; anything else is assumed to be a transport
// failure and retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if bloberrors.IsIntegrity(err) {
		return false
	}
	if errors.Is(err, bloberrors.ErrInvalidInput) || errors.Is(err, bloberrors.ErrInvalidRange) {
		return false
	}

	var reqErr *bloberrors.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Temporary()
	}

	// No HTTP response was received; treat as a transport failure.
	return true
}

// Options configures a driver run.
type Options struct {
	// Policies is the ordered filter chain; the first applicable decision wins
	Policies []Policy

	// Budget bounds the total wall-clock time including retry delays;
	// zero means unbounded
	Budget time.Duration

	// Start is the moment the logical operation began; zero means now
	Start time.Time

	// InitialLocation is the endpoint of the first attempt
	InitialLocation Location

	// Logger receives per-attempt debug traces; nil disables logging
	Logger *slog.Logger
}

// Do runs fn through the filter chain until it succeeds, a policy gives up,
// the execution budget would be exceeded, or the context is done. The last
// attempt's error is always surfaced; no layer swallows it.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context, loc Location) error) error {
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	loc := opts.InitialLocation

	for attempt := 0; ; {
		err := fn(ctx, loc)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		state := State{Attempt: attempt, Elapsed: time.Since(start), Location: loc}
		decision := decide(opts.Policies, state, err)

		switch {
		case decision.IsSwitch():
			// Failing over does not consume an attempt or a delay.
			loc = other(loc)
			if opts.Logger != nil {
				opts.Logger.DebugContext(ctx, "failing over",
					slog.String("location", loc.String()),
					slog.String("error", err.Error()))
			}
			continue

		case decision.IsRetry():
			delay := decision.Delay()
			if opts.Budget > 0 && state.Elapsed+delay > opts.Budget {
				return fmt.Errorf("%w after %d attempts: %w", bloberrors.ErrBudgetExceeded, attempt+1, err)
			}
			if opts.Logger != nil {
				opts.Logger.DebugContext(ctx, "retrying",
					slog.Int("attempt", attempt),
					slog.Duration("delay", delay),
					slog.String("error", err.Error()))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return err
			}
			attempt++
			continue

		default:
			return err
		}
	}
}

// decide consults each policy in order and returns the first applicable
// decision. A chain that passes on every policy gives up.
func decide(policies []Policy, state State, err error) Decision {
	for _, p := range policies {
		if d := p.Decide(state, err); !d.IsPass() {
			return d
		}
	}
	return GiveUp()
}

// other returns the opposite endpoint.
func other(loc Location) Location {
	if loc == LocationPrimary {
		return LocationSecondary
	}
	return LocationPrimary
}
