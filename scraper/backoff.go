package scraper

import (
	"context"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff is the retry delay of one payload. It starts at min and doubles
// after every wait, never exceeding max. Attempts are unbounded.
type Backoff struct {
	current time.Duration
	max     time.Duration
	waits   int
	sleep   SleepFunc
}

// NewBackoff returns a delay starting at min and capped at max.
func NewBackoff(min, max time.Duration, sleep SleepFunc) *Backoff {
	if sleep == nil {
		sleep = sleepContext
	}
	if max < min {
		max = min
	}
	return &Backoff{current: min, max: max, sleep: sleep}
}

// Current is the delay the next Wait will sleep.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// AtCeiling reports whether the delay has reached max.
func (b *Backoff) AtCeiling() bool {
	return b.current >= b.max
}

// Waits is the number of completed Wait calls.
func (b *Backoff) Waits() int {
	return b.waits
}

// Wait sleeps the current delay, then doubles it up to max.
func (b *Backoff) Wait(ctx context.Context) error {
	if err := b.sleep(ctx, b.current); err != nil {
		return err
	}
	b.waits++
	if b.current > b.max/2 {
		b.current = b.max
	} else {
		b.current *= 2
	}
	return nil
}
