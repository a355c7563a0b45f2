// Package bridge holds the two fixed-rate loops: SendLoop samples the local
// controller and ships snapshots, Driver drains them on the far side and
// feeds the device sink every tick.
package bridge

import (
	"log/slog"
	"time"

	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/internal/metrics"
	"github.com/Alia5/padlink/transport"
)

// DefaultMaxDrain bounds how many datagrams one tick may consume.
const DefaultMaxDrain = 256

// Source yields pending datagrams without blocking.
type Source interface {
	TryRead(buf []byte) (n int, ok bool, err error)
}

// Decoder turns a datagram into a snapshot.
type Decoder interface {
	Decode(data []byte) (command.Snapshot, error)
}

// Receiver keeps the most recent valid snapshot and the time it arrived.
// It is owned by the driver loop and not safe for concurrent use.
type Receiver struct {
	src      Source
	dec      Decoder
	maxDrain int
	logger   *slog.Logger
	m        *metrics.Metrics
	buf      []byte

	latest    command.Snapshot
	hasLatest bool
	lastRx    time.Time

	session  string
	lastSeq  uint64
	readFail bool
}

// NewReceiver starts Liveness at now with no snapshot, so the driver applies
// neutral until the first datagram and the failsafe window starts counting
// from startup.
func NewReceiver(src Source, dec Decoder, maxDrain int, now time.Time, logger *slog.Logger, m *metrics.Metrics) *Receiver {
	if maxDrain <= 0 {
		maxDrain = DefaultMaxDrain
	}
	return &Receiver{
		src:      src,
		dec:      dec,
		maxDrain: maxDrain,
		logger:   logger,
		m:        m,
		buf:      make([]byte, transport.MaxDatagram),
		lastRx:   now,
	}
}

// Poll drains pending datagrams in arrival order and keeps the last valid
// one. Liveness moves to now only if at least one datagram decoded.
// It returns the number of valid datagrams consumed.
func (r *Receiver) Poll(now time.Time) int {
	valid := 0
	for range r.maxDrain {
		n, ok, err := r.src.TryRead(r.buf)
		if err != nil {
			if !r.readFail {
				r.logger.Warn("receive failed", "error", err)
				r.readFail = true
			}
			break
		}
		r.readFail = false
		if !ok {
			break
		}

		snap, err := r.dec.Decode(r.buf[:n])
		if err != nil {
			r.m.DatagramsMalformed.Inc()
			r.logger.Debug("discarding datagram", "bytes", n, "error", err)
			continue
		}
		r.track(snap)
		r.latest = snap
		r.hasLatest = true
		valid++
	}
	if valid > 0 {
		r.lastRx = now
		r.m.DatagramsReceived.Add(float64(valid))
	}
	return valid
}

// track follows the sender session and sequence numbers for diagnostics.
func (r *Receiver) track(snap command.Snapshot) {
	if snap.Session != r.session {
		if r.session != "" {
			r.m.SessionChanges.Inc()
		}
		r.logger.Info("sender session", "sid", snap.Session)
		r.session = snap.Session
		r.lastSeq = 0
	}
	if snap.Seq == 0 {
		return
	}
	if r.lastSeq != 0 && snap.Seq > r.lastSeq+1 {
		r.m.SeqGaps.Add(float64(snap.Seq - r.lastSeq - 1))
	}
	r.lastSeq = max(r.lastSeq, snap.Seq)
}

// Latest returns the last valid snapshot, which may be stale.
func (r *Receiver) Latest() (command.Snapshot, bool) { return r.latest, r.hasLatest }

// LastRx returns the Liveness timestamp.
func (r *Receiver) LastRx() time.Time { return r.lastRx }

// Watchdog decides when the cached snapshot is too old to act on.
type Watchdog struct {
	Threshold time.Duration
}

// Stale reports whether input last received at lastRx is too old at now.
func (w Watchdog) Stale(now, lastRx time.Time) bool {
	return now.Sub(lastRx) > w.Threshold
}
