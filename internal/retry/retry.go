// File: internal/retry/retry.go
// Description: Bounded retry with optional exponential backoff. Wraps every
// navigation and interaction call made against an unreliable remote end.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrAttemptsExhausted wraps the last error after the final failed attempt.
var ErrAttemptsExhausted = errors.New("all retry attempts exhausted")

// Options shape a single retry loop.
type Options struct {
	// Attempts is the maximum number of invocations, including the first.
	Attempts int
	// Delay is the base sleep between attempts.
	Delay time.Duration
	// Backoff doubles the sleep after every failed attempt when set;
	// otherwise the flat Delay is used.
	Backoff bool
	// Fatal lists errors (matched with errors.Is) that abort immediately
	// and propagate without further attempts. Context cancellation is
	// always fatal.
	Fatal []error
	// OnFail, if set, runs best-effort after the final failed attempt.
	// Its own failure is logged, never propagated.
	OnFail func(error)

	// sleep is swapped out by tests.
	sleep func(context.Context, time.Duration) error
}

// Do invokes fn up to opts.Attempts times, sleeping between failures.
// It returns nil on the first success, the fatal error as-is, or the last
// error wrapped in ErrAttemptsExhausted.
func Do(ctx context.Context, log *zap.Logger, name string, opts Options, fn func(context.Context) error) error {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isFatal(ctx, err, opts.Fatal) {
			log.Error("Fatal error, not retrying",
				zap.String("operation", name), zap.Error(err))
			return err
		}

		lastErr = err
		log.Warn("Operation failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.Attempts),
			zap.Error(err))

		if attempt == opts.Attempts {
			break
		}
		delay := opts.Delay
		if opts.Backoff {
			delay = opts.Delay << (attempt - 1)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	log.Error("Operation permanently failed",
		zap.String("operation", name),
		zap.Int("attempts", opts.Attempts),
		zap.Error(lastErr))

	if opts.OnFail != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("OnFail callback panicked",
						zap.String("operation", name), zap.Any("panic", r))
				}
			}()
			opts.OnFail(lastErr)
		}()
	}
	return fmt.Errorf("%w: %s: %w", ErrAttemptsExhausted, name, lastErr)
}

// isFatal reports whether err must propagate without retry.
func isFatal(ctx context.Context, err error, fatal []error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, f := range fatal {
		if errors.Is(err, f) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
