package messaging

import (
	"context"
	"time"
)

// Backoff gives the delay before reconnect attempt n (1-based).
type Backoff interface {
	Next(attempt int) time.Duration
}

// ConstantBackoff waits the same duration before every attempt, forever.
type ConstantBackoff time.Duration

func (b ConstantBackoff) Next(int) time.Duration {
	return time.Duration(b)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
