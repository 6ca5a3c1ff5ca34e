package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
)

func serviceErr(status int) error {
	return bloberrors.NewRequestError(status, "", "test")
}

func TestExponential_DelaysNonDecreasingAndCapped(t *testing.T) {
	p := Exponential{Base: 10 * time.Millisecond, Cap: 80 * time.Millisecond, MaxAttempts: 10}

	var prev time.Duration
	for attempt := 0; attempt < 9; attempt++ {
		d := p.Decide(State{Attempt: attempt}, serviceErr(http.StatusServiceUnavailable))
		require.True(t, d.IsRetry(), "attempt %d", attempt)
		assert.GreaterOrEqual(t, d.Delay(), prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d.Delay(), 80*time.Millisecond, "attempt %d", attempt)
		prev = d.Delay()
	}

	// Exact doubling until the cap
	assert.Equal(t, 10*time.Millisecond, p.delay(0))
	assert.Equal(t, 20*time.Millisecond, p.delay(1))
	assert.Equal(t, 40*time.Millisecond, p.delay(2))
	assert.Equal(t, 80*time.Millisecond, p.delay(3))
	assert.Equal(t, 80*time.Millisecond, p.delay(7))
}

func TestExponential_GivesUpAtMaxAttempts(t *testing.T) {
	p := Exponential{Base: time.Millisecond, Cap: time.Second, MaxAttempts: 3}

	d := p.Decide(State{Attempt: 2}, serviceErr(http.StatusInternalServerError))
	assert.True(t, d.IsGiveUp())
}

func TestLinear_ConstantDelay(t *testing.T) {
	p := Linear{Delay: 25 * time.Millisecond, MaxAttempts: 4}

	for attempt := 0; attempt < 3; attempt++ {
		d := p.Decide(State{Attempt: attempt}, serviceErr(http.StatusBadGateway))
		require.True(t, d.IsRetry())
		assert.Equal(t, 25*time.Millisecond, d.Delay())
	}

	d := p.Decide(State{Attempt: 3}, serviceErr(http.StatusBadGateway))
	assert.True(t, d.IsGiveUp())
}

func TestRetryable_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"throttled", serviceErr(http.StatusTooManyRequests), true},
		{"server error", serviceErr(http.StatusInternalServerError), true},
		{"bad gateway", serviceErr(http.StatusBadGateway), true},
		{"unavailable", serviceErr(http.StatusServiceUnavailable), true},
		{"request timeout", serviceErr(http.StatusRequestTimeout), true},
		{"not found", serviceErr(http.StatusNotFound), false},
		{"forbidden", serviceErr(http.StatusForbidden), false},
		{"precondition failed", serviceErr(http.StatusPreconditionFailed), false},
		{"digest mismatch", bloberrors.ErrDigestMismatch, false},
		{"length mismatch", bloberrors.ErrLengthMismatch, false},
		{"invalid input", bloberrors.ErrInvalidInput, false},
		{"context canceled", context.Canceled, false},
		{"transport failure", io.ErrUnexpectedEOF, true},
		{"service digest mismatch", bloberrors.NewRequestError(
			http.StatusBadRequest, bloberrors.CodeDigestMismatch, "md5 mismatch"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{
		Policies: []Policy{Linear{Delay: time.Millisecond, MaxAttempts: 5}},
	}, func(ctx context.Context, loc Location) error {
		calls++
		if calls < 3 {
			return serviceErr(http.StatusServiceUnavailable)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryTerminalErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{
		Policies: []Policy{Exponential{Base: time.Millisecond, Cap: time.Second, MaxAttempts: 5}},
	}, func(ctx context.Context, loc Location) error {
		calls++
		return bloberrors.ErrDigestMismatch
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, bloberrors.ErrDigestMismatch)
	assert.Equal(t, 1, calls, "integrity errors must not be re-attempted")
}

func TestDo_BudgetForcesGiveUp(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), Options{
		Policies: []Policy{Linear{Delay: 40 * time.Millisecond, MaxAttempts: 100}},
		Budget:   100 * time.Millisecond,
	}, func(ctx context.Context, loc Location) error {
		calls++
		return serviceErr(http.StatusServiceUnavailable)
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, bloberrors.ErrBudgetExceeded)
	// The underlying attempt error is preserved in the chain
	var reqErr *bloberrors.RequestError
	assert.ErrorAs(t, err, &reqErr)
	// Budget plus one scheduling quantum, never attempt-count bound
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestDo_FailoverToSecondary(t *testing.T) {
	var locations []Location
	err := Do(context.Background(), Options{
		Policies: []Policy{
			Failover{Enabled: true, ReadOnly: true},
			Linear{Delay: time.Millisecond, MaxAttempts: 3},
		},
	}, func(ctx context.Context, loc Location) error {
		locations = append(locations, loc)
		if loc == LocationPrimary {
			return bloberrors.NewRequestError(http.StatusNotFound, bloberrors.CodeBlobNotFound, "missing")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []Location{LocationPrimary, LocationSecondary}, locations)
}

func TestDo_NoFailoverForWrites(t *testing.T) {
	var locations []Location
	err := Do(context.Background(), Options{
		Policies: []Policy{
			Failover{Enabled: true, ReadOnly: false},
			Linear{Delay: time.Millisecond, MaxAttempts: 2},
		},
	}, func(ctx context.Context, loc Location) error {
		locations = append(locations, loc)
		return serviceErr(http.StatusServiceUnavailable)
	})

	require.Error(t, err)
	for _, loc := range locations {
		assert.Equal(t, LocationPrimary, loc)
	}
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Options{
		Policies: []Policy{Linear{Delay: time.Hour, MaxAttempts: 10}},
	}, func(ctx context.Context, loc Location) error {
		calls++
		cancel()
		return serviceErr(http.StatusServiceUnavailable)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_EmptyChainGivesUp(t *testing.T) {
	wantErr := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Options{}, func(ctx context.Context, loc Location) error {
		calls++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}
