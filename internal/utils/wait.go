// Package utils holds small helpers shared by the worker packages.
package utils

import (
	"context"
	"time"
)

var newTimer = time.NewTimer

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := newTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff doubles base for every failure after the first and caps the result at limit.
func Backoff(failures int, base, limit time.Duration) time.Duration {
	if failures <= 1 || base <= 0 {
		return base
	}

	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	return d
}
