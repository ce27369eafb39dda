package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradealerter/internal/ports"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("broker down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.Is(err, ports.ErrRetryExhausted))
	assert.Contains(t, err.Error(), "broker down")
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	p := Policy{}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 5, Delay: time.Minute}

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel() // cancel while the policy would wait out the backoff
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ports.ErrContextCanceled))
}

func TestDo_CancelledContextNeverRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	err := Policy{MaxAttempts: 3, Delay: time.Millisecond}.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.True(t, errors.Is(err, ports.ErrContextCanceled))
}

func TestBackoff(t *testing.T) {
	exp := Policy{Delay: time.Second, Exponential: true}
	assert.Equal(t, time.Second, exp.backoff(1))
	assert.Equal(t, 2*time.Second, exp.backoff(2))
	assert.Equal(t, 4*time.Second, exp.backoff(3))

	flat := Policy{Delay: time.Second}
	assert.Equal(t, time.Second, flat.backoff(1))
	assert.Equal(t, time.Second, flat.backoff(3))
}
