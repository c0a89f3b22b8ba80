package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pauser abstracts how the crawler waits between page actions.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer and wakes early when ctx is done.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Window is a randomized pause range.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a uniformly random duration in [Min, Max].
func (w Window) Pick() time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rand.Int64N(int64(w.Max-w.Min)+1))
}

// PauseWithin pauses for a random duration drawn from w.
func PauseWithin(ctx context.Context, p Pauser, w Window) {
	if p == nil {
		return
	}
	p.Pause(ctx, w.Pick())
}
