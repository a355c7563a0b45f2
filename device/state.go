// Package device describes the command state handed to a device sink on
// every driver tick.
package device

import (
	"fmt"

	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/normalize"
)

// State is the full command applied to the virtual controller in one tick.
// Sticks are in device units ([-normalize.AxisScale, normalize.AxisScale],
// up positive). A State is always built whole by Neutral or FromSnapshot.
type State struct {
	StickX, StickY int

	A, B, X, Y bool
	// ZR carries the snapshot's drift flag.
	ZR bool
	// Plus carries the snapshot's pause flag.
	Plus bool
}

// Neutral returns the centered, all-released state.
func Neutral() State { return State{} }

// FromSnapshot maps a received snapshot into device units. The deadzone is
// re-applied on the receiving side so that senders with a smaller (or no)
// deadzone still produce a quiet stick at rest.
func FromSnapshot(s command.Snapshot, deadzone float64) State {
	lx := normalize.Deadzone(s.LX, deadzone)
	ly := normalize.Deadzone(s.LY, deadzone)
	return State{
		StickX: normalize.ToDeviceAxis(lx),
		StickY: normalize.ToDeviceAxis(normalize.FlipY(ly)),
		A:      s.A,
		B:      s.B,
		X:      s.X,
		Y:      s.Y,
		ZR:     s.Drift,
		Plus:   s.Pause,
	}
}

// IsNeutral reports whether st equals Neutral().
func (st State) IsNeutral() bool { return st == State{} }

func (st State) String() string {
	btn := func(name string, on bool) string {
		if on {
			return name
		}
		return "-"
	}
	return fmt.Sprintf("stick=(%d,%d) %s %s %s %s %s %s",
		st.StickX, st.StickY,
		btn("A", st.A), btn("B", st.B), btn("X", st.X), btn("Y", st.Y),
		btn("ZR", st.ZR), btn("+", st.Plus))
}
