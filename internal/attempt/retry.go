package attempt

import (
	"context"
	"time"
)

// DefaultPollDelays is the finalization backoff used when nothing else is configured.
var DefaultPollDelays = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
}

// RetryPolicy bounds a wait-then-try loop. Backoff receives the zero-based
// attempt index and returns how long to wait before that attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

func DefaultPollPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: len(DefaultPollDelays), Backoff: FixedDelays(DefaultPollDelays...)}
}

// FixedDelays walks the given delays, repeating the last one once exhausted.
func FixedDelays(delays ...time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if len(delays) == 0 {
			return 0
		}
		if attempt >= len(delays) {
			return delays[len(delays)-1]
		}
		return delays[attempt]
	}
}

// Run waits, then calls fn, until fn reports done or attempts run out.
// Cancellation is checked before every attempt.
func (p RetryPolicy) Run(ctx context.Context, fn func(attempt int) (done bool)) error {
	for i := 0; i < p.MaxAttempts; i++ {
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(i)
		}
		if err := wait(ctx, d); err != nil {
			return err
		}
		if fn(i) {
			return nil
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
