// Package ticker implements the agent's wall-clock-aligned refresh
// scheduler: the first tick lands on the next multiple of the poll
// interval since the Unix epoch, so that a fleet of agents polling on the
// same interval tends to hit upstream listings at the same moments. This
// mirrors the "rounded_instant" helper in the original implementation this
// module's scheduler is modeled on, reimplemented with the standard
// library's time package instead of tokio.
package ticker

import (
	"context"
	"time"

	"github.com/quay/zlog"
)

// Func is invoked on every aligned tick. It should not block indefinitely;
// the caller is responsible for bounding its own duration (the scheduler
// never runs Func concurrently with itself, see Run).
type Func func(context.Context)

// Ticker runs a Func on a wall-clock-aligned interval.
type Ticker struct {
	interval time.Duration
}

// New returns a Ticker for the given interval. The caller is responsible
// for validating interval against any minimum (the agent requires at least
// one second, see the Config validation in the root package).
func New(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

// Run blocks, invoking fn once per aligned tick until ctx is canceled.
//
// The first tick is aligned to the next wall-clock boundary that is a
// multiple of the interval from the Unix epoch; it fires at the moment Run
// is called only if that moment is itself a boundary. Run never invokes fn
// concurrently with a prior invocation: ticks that arrive while fn is still
// running are coalesced, so at most one of them is delivered once fn
// returns.
func (t *Ticker) Run(ctx context.Context, fn Func) {
	next := nextBoundary(time.Now(), t.interval)
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}

	zlog.Info(ctx).
		Time("next_tick", next).
		Dur("interval", t.interval).
		Msg("scheduled periodic refresh")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticks := time.NewTicker(t.interval)
	defer ticks.Stop()

	fn(ctx)

	// A single goroutine drives both the ticker and fn, so fn can never run
	// concurrently with itself: while fn is executing, any tick that fires is
	// simply not read until fn returns, and time.Ticker drops ticks rather
	// than queuing more than one when its channel isn't drained in time.
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks.C:
			fn(ctx)
		}
	}
}

// nextBoundary returns the earliest instant at or after now that is an
// exact multiple of interval measured from the Unix epoch.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	epoch := now.UnixMilli()
	step := interval.Milliseconds()
	if step <= 0 {
		return now
	}
	rem := epoch % step
	if rem == 0 {
		return now
	}
	return now.Add(time.Duration(step-rem) * time.Millisecond)
}
