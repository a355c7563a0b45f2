package ticker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Alia5/padlink/internal/ticker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) SleepUntil(ctx context.Context, t time.Time) error {
	if t.After(c.now) {
		c.now = t
	}
	return ctx.Err()
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPeriodForRate(t *testing.T) {
	assert.Equal(t, 8333333*time.Nanosecond, ticker.PeriodForRate(120))
	assert.Equal(t, 10*time.Millisecond, ticker.PeriodForRate(100))
	assert.Zero(t, ticker.PeriodForRate(0))
}

func TestRunHoldsDeadlines(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := &fakeClock{now: start}
	tk := ticker.New(10*time.Millisecond, clock)

	var calls []time.Time
	errStop := errors.New("stop")
	err := tk.Run(context.Background(), func(now time.Time) error {
		calls = append(calls, now)
		clock.advance(3 * time.Millisecond) // simulated work
		if len(calls) == 100 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	require.Len(t, calls, 100)

	for i, c := range calls {
		assert.Equal(t, start.Add(time.Duration(i)*10*time.Millisecond), c, "tick %d drifted", i)
	}
	assert.Zero(t, tk.Skipped())
}

func TestRunSkipsMissedDeadlines(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := &fakeClock{now: start}
	tk := ticker.New(10*time.Millisecond, clock)

	var calls []time.Time
	errStop := errors.New("stop")
	err := tk.Run(context.Background(), func(now time.Time) error {
		calls = append(calls, now)
		if len(calls) == 2 {
			clock.advance(35 * time.Millisecond) // stall
		}
		if len(calls) == 4 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)

	assert.Equal(t, []time.Time{
		start,
		start.Add(10 * time.Millisecond),
		start.Add(45 * time.Millisecond), // late deadline served at once
		start.Add(50 * time.Millisecond), // back on the grid
	}, calls)
	assert.Equal(t, uint64(2), tk.Skipped())
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	tk := ticker.New(time.Millisecond, clock)

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := tk.Run(ctx, func(time.Time) error {
		n++
		if n == 5 {
			cancel()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRunRejectsZeroPeriod(t *testing.T) {
	err := ticker.New(0, nil).Run(context.Background(), func(time.Time) error { return nil })
	assert.Error(t, err)
}

func TestRealClockSleepUntil(t *testing.T) {
	c := ticker.RealClock{}
	start := c.Now()
	require.NoError(t, c.SleepUntil(context.Background(), start.Add(5*time.Millisecond)))
	assert.GreaterOrEqual(t, c.Now().Sub(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.SleepUntil(ctx, c.Now().Add(time.Hour)), context.Canceled)
}
