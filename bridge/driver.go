package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/internal/metrics"
	"github.com/Alia5/padlink/internal/ticker"
	"github.com/Alia5/padlink/sink"
)

// Driver is the receiver-side loop body: drain, decide, apply.
type Driver struct {
	rx       *Receiver
	wd       Watchdog
	sink     sink.Sink
	deadzone float64
	logger   *slog.Logger
	m        *metrics.Metrics

	stale     bool
	applyFail bool
	conn      sink.ConnState
}

// NewDriver returns a Driver that applies exactly one state to s per tick.
func NewDriver(rx *Receiver, wd Watchdog, s sink.Sink, deadzone float64, logger *slog.Logger, m *metrics.Metrics) *Driver {
	return &Driver{rx: rx, wd: wd, sink: s, deadzone: deadzone, logger: logger, m: m, conn: sink.Connected}
}

// Decide returns the state for now: neutral when stale or before the first
// snapshot, the mapped latest snapshot otherwise. It does not poll.
func (d *Driver) Decide(now time.Time) (device.State, bool) {
	stale := d.wd.Stale(now, d.rx.LastRx())
	snap, ok := d.rx.Latest()
	if stale || !ok {
		return device.Neutral(), stale
	}
	return device.FromSnapshot(snap, d.deadzone), false
}

// Tick runs one iteration. The sink gets exactly one Apply per call whatever
// the input or connection state; only a crashed sink ends the loop.
func (d *Driver) Tick(now time.Time) error {
	d.rx.Poll(now)
	st, stale := d.Decide(now)
	age := now.Sub(d.rx.LastRx())

	d.m.DriverTicks.Inc()
	d.m.Staleness.Set(age.Seconds())
	if stale {
		d.m.FailsafeTicks.Inc()
	}
	if stale != d.stale {
		if stale {
			d.logger.Warn("no input within failsafe window, holding neutral", "age", age, "threshold", d.wd.Threshold)
		} else {
			d.logger.Info("input resumed")
		}
		d.stale = stale
	}

	if err := d.sink.Apply(st); err != nil {
		d.m.ApplyErrors.Inc()
		if !d.applyFail {
			d.logger.Warn("device apply failed", "error", err)
		} else {
			d.logger.Debug("device apply failed", "error", err)
		}
		d.applyFail = true
	} else {
		d.applyFail = false
	}

	conn, err := d.sink.State()
	d.m.SinkState.Set(float64(conn))
	if conn == sink.Crashed {
		if err == nil {
			err = sink.ErrCrashed
		}
		return fmt.Errorf("device sink: %w", err)
	}
	if conn != d.conn {
		d.logger.Info("device sink state", "from", d.conn.String(), "to", conn.String())
		d.conn = conn
	}
	return nil
}

// Run ticks on t until ctx is done (nil) or the sink crashes.
func (d *Driver) Run(ctx context.Context, t *ticker.Ticker) error {
	return runLoop(ctx, t, d.m, d.Tick)
}

// runLoop wraps a loop body with tick timing and skip accounting.
func runLoop(ctx context.Context, t *ticker.Ticker, m *metrics.Metrics, tick func(time.Time) error) error {
	var skipped uint64
	return t.Run(ctx, func(now time.Time) error {
		start := time.Now()
		err := tick(now)
		m.TickDuration.Observe(time.Since(start).Seconds())
		if s := t.Skipped(); s != skipped {
			m.SkippedTicks.Add(float64(s - skipped))
			skipped = s
		}
		return err
	})
}
