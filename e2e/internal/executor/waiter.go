package executor

import (
	"context"
	"time"
)

// WaitUntil blocks until targetSeconds (scaled down by timeScale) after start
func WaitUntil(ctx context.Context, start time.Time, targetSeconds, timeScale int) error {
	if timeScale < 1 {
		timeScale = 1
	}

	target := start.Add(time.Duration(targetSeconds) * time.Second / time.Duration(timeScale))
	d := time.Until(target)
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
