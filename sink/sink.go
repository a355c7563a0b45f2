// Package sink defines the device-sink collaborator: whatever finally makes
// a virtual controller move.
package sink

import (
	"context"
	"errors"

	"github.com/Alia5/padlink/device"
)

// ErrCrashed is wrapped by the error a sink reports once it gives up.
var ErrCrashed = errors.New("device sink crashed")

// ConnState is the connection status of a sink.
type ConnState int

const (
	Connecting ConnState = iota
	Connected
	Reconnecting
	Crashed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Sink accepts complete device states.
type Sink interface {
	// WaitConnected blocks until the sink is Connected, the sink crashes
	// (the crash error is returned) or ctx is done.
	WaitConnected(ctx context.Context) error
	// State reports the current status. The error is non-nil only when Crashed.
	State() (ConnState, error)
	// Apply pushes a full state. While reconnecting it is expected to fail
	// or be dropped; the caller keeps ticking either way.
	Apply(st device.State) error
	Close() error
}
