// Package sampler turns input-provider readings into command snapshots.
package sampler

import (
	"time"

	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/input"
	"github.com/Alia5/padlink/normalize"
)

// Sampler reads one snapshot per call from a Provider.
// It is not safe for concurrent use; it belongs to the send loop.
type Sampler struct {
	provider input.Provider
	mapping  input.Mapping
	deadzone float64
	session  string

	seq uint64
}

// New returns a Sampler. session is stamped on every snapshot so the receiver
// can tell sender restarts apart.
func New(p input.Provider, m input.Mapping, deadzone float64, session string) *Sampler {
	return &Sampler{provider: p, mapping: m, deadzone: deadzone, session: session}
}

// Sample refreshes the provider and returns the normalized snapshot at now.
// A refresh error is returned alongside a neutral snapshot so the caller can
// still keep its cadence.
func (s *Sampler) Sample(now time.Time) (command.Snapshot, error) {
	s.seq++
	snap := command.Snapshot{TS: now, Seq: s.seq, Session: s.session}
	if err := s.provider.Refresh(); err != nil {
		return snap, err
	}

	axis := func(i int) float64 {
		if i < 0 {
			return 0
		}
		return normalize.Clamp(normalize.Deadzone(s.provider.Axis(i), s.deadzone))
	}
	button := func(i int) bool {
		return i >= 0 && s.provider.Button(i)
	}

	snap.LX = axis(s.mapping.AxisX)
	snap.LY = axis(s.mapping.AxisY)
	snap.A = button(s.mapping.A)
	snap.B = button(s.mapping.B)
	snap.X = button(s.mapping.X)
	snap.Y = button(s.mapping.Y)
	snap.Drift = button(s.mapping.Drift)
	snap.Pause = button(s.mapping.Pause)
	return snap, nil
}
