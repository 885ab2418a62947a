package upload

import (
	"context"
	"time"
)

// RetryDelays computes the backoff sequence used by a session. The first retry is
// immediate, the second waits base, and every following one doubles the previous
// delay. Every delay is capped at maxDelay. A count below 1 disables retries.
func RetryDelays(count int, base, maxDelay time.Duration) []time.Duration {
	if count < 1 {
		return nil
	}

	delays := make([]time.Duration, 0, count)
	var delay time.Duration
	for range count {
		delays = append(delays, min(delay, maxDelay))
		if delay == 0 {
			delay = base
		} else {
			delay = min(delay*2, maxDelay)
		}
	}
	return delays
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
