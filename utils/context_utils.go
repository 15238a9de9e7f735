package utils

import (
	"context"
	"time"
)

// CheckContextDone checks if a provided context has indicated it is done, and returns a boolean indicating if it is.
func CheckContextDone(ctx context.Context) bool {
	// Check if the context is done in a non-blocking fashion.
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// SleepContext waits for the provided duration or until ctx is done, whichever comes first. It returns the context's
// error if the wait was cut short.
func SleepContext(ctx context.Context, d time.Duration) error {
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
