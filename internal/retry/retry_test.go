package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), zap.NewNop(), "op", Options{Attempts: 3, Delay: time.Second}, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffShapeAndAttemptCount(t *testing.T) {
	var slept []time.Duration
	opts := Options{
		Attempts: 3,
		Delay:    time.Second,
		Backoff:  true,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	calls := 0
	err := Do(context.Background(), zap.NewNop(), "flaky", opts, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "action must be invoked exactly 3 times")

	// Two failures before success: sleeps of 1s then 2s.
	require.Len(t, slept, 2)
	assert.Equal(t, time.Second, slept[0])
	assert.Equal(t, 2*time.Second, slept[1])

	var total time.Duration
	for _, d := range slept {
		total += d
	}
	assert.GreaterOrEqual(t, total, 3*time.Second)
}

func TestDo_FlatDelayWithoutBackoff(t *testing.T) {
	var slept []time.Duration
	opts := Options{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	err := Do(context.Background(), zap.NewNop(), "always-fails", opts, func(context.Context) error {
		return errors.New("nope")
	})
	require.Error(t, err)
	require.Len(t, slept, 2)
	assert.Equal(t, 500*time.Millisecond, slept[0])
	assert.Equal(t, 500*time.Millisecond, slept[1])
}

func TestDo_FatalErrorAbortsImmediately(t *testing.T) {
	fatal := errors.New("operator interrupt")
	calls := 0
	opts := Options{Attempts: 5, Delay: time.Second, Fatal: []error{fatal}}

	err := Do(context.Background(), zap.NewNop(), "op", opts, func(context.Context) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted, "fatal errors propagate unwrapped")
	assert.Equal(t, 1, calls)
}

func TestDo_WrappedFatalErrorDetected(t *testing.T) {
	fatal := errors.New("gate closed")
	calls := 0
	opts := Options{Attempts: 5, Delay: time.Second, Fatal: []error{fatal}}

	err := Do(context.Background(), zap.NewNop(), "op", opts, func(context.Context) error {
		calls++
		return errors.Join(errors.New("context"), fatal)
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_OnFailInvokedWithLastError(t *testing.T) {
	boom := errors.New("boom")
	var observed error
	opts := Options{
		Attempts: 2,
		Delay:    time.Millisecond,
		OnFail:   func(err error) { observed = err },
		sleep:    func(context.Context, time.Duration) error { return nil },
	}

	err := Do(context.Background(), zap.NewNop(), "op", opts, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, boom, observed)
}

func TestDo_OnFailPanicIsContained(t *testing.T) {
	opts := Options{
		Attempts: 1,
		OnFail:   func(error) { panic("callback bug") },
	}
	err := Do(context.Background(), zap.NewNop(), "op", opts, func(context.Context) error {
		return errors.New("fail")
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestDo_ContextCancellationIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, zap.NewNop(), "op", Options{Attempts: 5, Delay: time.Second}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation must stop the loop")
}
