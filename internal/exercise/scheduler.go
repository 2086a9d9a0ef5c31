package exercise

import (
	"context"
	"time"
)

// Scheduler paces the tracking loop. Tick separates consecutive frame
// evaluations; Idle is the shorter wait used while paused or between runs.
// Keeping cadence behind this interface keeps sleep durations out of the
// tracking logic and lets tests step instantly.
type Scheduler interface {
	Tick(ctx context.Context) error
	Idle(ctx context.Context) error
}

// IntervalScheduler waits fixed wall-clock intervals.
type IntervalScheduler struct {
	TickEvery time.Duration
	IdleEvery time.Duration
}

// Tick implements Scheduler.
func (s IntervalScheduler) Tick(ctx context.Context) error {
	return wait(ctx, s.TickEvery)
}

// Idle implements Scheduler.
func (s IntervalScheduler) Idle(ctx context.Context) error {
	return wait(ctx, s.IdleEvery)
}

func wait(ctx context.Context, d time.Duration) error {
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
