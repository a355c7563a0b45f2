// Package ticker runs fixed-rate loops against deadlines rather than fixed
// sleeps, so the average rate does not drift over long runs.
package ticker

import (
	"context"
	"errors"
	"time"
)

// Clock is the time source of a Ticker.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done.
	SleepUntil(ctx context.Context, t time.Time) error
}

// RealClock uses the monotonic wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
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

// PeriodForRate converts a rate in Hz to a tick period.
func PeriodForRate(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// Ticker calls a function once per period.
type Ticker struct {
	period time.Duration
	clock  Clock

	skipped uint64
}

// New returns a Ticker with the given period. A nil clock uses RealClock.
func New(period time.Duration, clock Clock) *Ticker {
	if clock == nil {
		clock = RealClock{}
	}
	return &Ticker{period: period, clock: clock}
}

// Period returns the tick period.
func (t *Ticker) Period() time.Duration { return t.period }

// Skipped returns how many deadlines were dropped because an iteration
// overran by more than a full period.
func (t *Ticker) Skipped() uint64 { return t.skipped }

// Run calls fn at start, start+period, start+2*period, ... until ctx is
// cancelled (returns nil) or fn returns an error (returned as is).
// Missed deadlines are skipped instead of being replayed in a burst.
func (t *Ticker) Run(ctx context.Context, fn func(now time.Time) error) error {
	if t.period <= 0 {
		return errors.New("ticker: period must be positive")
	}
	next := t.clock.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := fn(t.clock.Now()); err != nil {
			return err
		}

		next = next.Add(t.period)
		if behind := t.clock.Now().Sub(next); behind >= t.period {
			n := behind / t.period
			next = next.Add(n * t.period)
			t.skipped += uint64(n)
		}
		if err := t.clock.SleepUntil(ctx, next); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
