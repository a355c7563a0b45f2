// Package input reads a physical joystick for the sender.
package input

import (
	"errors"
	"fmt"
	"sync"

	"github.com/0xcafed00d/joystick"

	"github.com/Alia5/padlink/normalize"
)

// ErrNoDevice is returned when no joystick can be opened.
var ErrNoDevice = errors.New("no joystick detected; pair/connect the controller first")

// Provider is the per-tick view of an input device.
type Provider interface {
	Name() string
	// Refresh pumps the device's pending events. It must be called once per
	// tick before Axis/Button, even if nothing is read that tick.
	Refresh() error
	// Axis returns the axis value in [-1, 1] (up/left negative). Unknown
	// indices read as 0.
	Axis(i int) float64
	// Button reports whether the button is held. Unknown indices read as released.
	Button(i int) bool
	Close() error
}

// Mapping selects which device axes and buttons feed a snapshot.
// A negative index means unmapped (always centered/released).
type Mapping struct {
	AxisX int `help:"Joystick axis index for the stick X" default:"0"`
	AxisY int `help:"Joystick axis index for the stick Y (up negative)" default:"1"`
	A     int `help:"Button index for A" default:"1"`
	B     int `help:"Button index for B" default:"3"`
	X     int `help:"Button index for X" default:"0"`
	Y     int `help:"Button index for Y" default:"2"`
	Drift int `help:"Button index for the secondary action (-1 disables)" default:"-1"`
	Pause int `help:"Button index for the menu/pause button (-1 disables)" default:"-1"`
}

// DefaultMapping mirrors a left Joy-Con held sideways.
func DefaultMapping() Mapping {
	return Mapping{AxisX: 0, AxisY: 1, A: 1, B: 3, X: 0, Y: 2, Drift: -1, Pause: -1}
}

const axisMax = 32767

// Joystick is a Provider backed by the OS joystick API.
type Joystick struct {
	js    joystick.Joystick
	mu    sync.Mutex
	state joystick.State
}

var openJoystick = joystick.Open

// OpenJoystick opens the joystick with the given index. Failure to find one
// is reported as ErrNoDevice and is not retried.
func OpenJoystick(index int) (*Joystick, error) {
	js, err := openJoystick(index)
	if err != nil {
		return nil, fmt.Errorf("%w (index %d): %v", ErrNoDevice, index, err)
	}
	return &Joystick{js: js}, nil
}

func (j *Joystick) Name() string { return j.js.Name() }

// AxisCount and ButtonCount report the device capabilities.
func (j *Joystick) AxisCount() int   { return j.js.AxisCount() }
func (j *Joystick) ButtonCount() int { return j.js.ButtonCount() }

func (j *Joystick) Refresh() error {
	st, err := j.js.Read()
	if err != nil {
		return fmt.Errorf("read joystick: %w", err)
	}
	j.mu.Lock()
	j.state = st
	j.mu.Unlock()
	return nil
}

func (j *Joystick) Axis(i int) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.state.AxisData) {
		return 0
	}
	return normalize.Clamp(float64(j.state.AxisData[i]) / axisMax)
}

func (j *Joystick) Button(i int) bool {
	if i < 0 || i >= 32 {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Buttons&(1<<uint(i)) != 0
}

func (j *Joystick) Close() error {
	j.js.Close()
	return nil
}
