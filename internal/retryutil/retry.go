// Package retryutil provides the jittered-sleep and retry-loop primitives
// shared by the download pipeline and the chapter-ID repairer. The retry
// loop itself is built on avast/retry-go rather than a hand-rolled
// for-loop; JitterSleep and the backoff delay helper are the
// domain-specific pieces retry-go doesn't provide.
package retryutil

import (
	"context"
	"math/rand"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// JitterSleep sleeps for a duration uniformly distributed between base and
// min(base*spread, max), or returns ctx.Err() early if ctx is cancelled
// first. Matches the source's async/sync jitter_sleep, which both sleep
// for uniform(base, min(base*spread, max)).
func JitterSleep(ctx context.Context, base time.Duration, spread float64, max time.Duration) error {
	upper := time.Duration(float64(base) * spread)
	if upper > max {
		upper = max
	}
	if upper < base {
		upper = base
	}
	d := base
	if upper > base {
		d = base + time.Duration(rand.Int63n(int64(upper-base)+1))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// BackoffDelay returns the jittered exponential backoff duration for the
// given attempt (0-indexed): uniform(base, min(base*1.2, backoff+3s)), where
// base is backoff*2^attempt capped at backoff+3s.
func BackoffDelay(attempt int, backoffFactor time.Duration) time.Duration {
	base := time.Duration(float64(backoffFactor) * float64(uint(1)<<uint(attempt)))
	max := backoffFactor + 3*time.Second
	if base > max {
		base = max
	}
	upper := time.Duration(float64(base) * 1.2)
	if upper > max {
		upper = max
	}
	if upper <= base {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(upper-base)+1))
}

// Unretriable wraps err so Do stops immediately instead of retrying it,
// while still satisfying errors.Is(err, target) against the wrapped
// error — used for the pipeline's "restricted" and "legitimately empty"
// outcomes, which are never transient.
func Unretriable(err error) error {
	return retry.Unrecoverable(err)
}

// Do runs fn up to attempts+1 times (one initial call plus retry_times
// retries), sleeping a jittered exponential backoff between attempts.
// fn's error is returned unwrapped from retry-go's aggregate on final
// failure so callers can still errors.Is/As against it.
func Do(ctx context.Context, attempts int, backoffFactor time.Duration, fn func(attempt int) error) error {
	call := 0
	err := retry.Do(
		func() error {
			defer func() { call++ }()
			return fn(call)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts+1)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return BackoffDelay(int(n), backoffFactor)
		}),
	)
	return err
}
