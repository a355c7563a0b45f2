package input

import (
	"errors"
	"testing"

	"github.com/0xcafed00d/joystick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJoystick struct {
	state  joystick.State
	err    error
	closed bool
}

func (f *fakeJoystick) AxisCount() int               { return len(f.state.AxisData) }
func (f *fakeJoystick) ButtonCount() int             { return 8 }
func (f *fakeJoystick) Name() string                 { return "Joy-Con (L)" }
func (f *fakeJoystick) Read() (joystick.State, error) { return f.state, f.err }
func (f *fakeJoystick) Close()                       { f.closed = true }

func withFakeOpen(t *testing.T, fn func(int) (joystick.Joystick, error)) {
	t.Helper()
	orig := openJoystick
	openJoystick = fn
	t.Cleanup(func() { openJoystick = orig })
}

func TestOpenJoystickNoDevice(t *testing.T) {
	withFakeOpen(t, func(int) (joystick.Joystick, error) {
		return nil, errors.New("open /dev/input/js0: no such file or directory")
	})

	_, err := OpenJoystick(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Contains(t, err.Error(), "pair/connect")
}

func TestJoystickProvider(t *testing.T) {
	fake := &fakeJoystick{}
	withFakeOpen(t, func(int) (joystick.Joystick, error) { return fake, nil })

	js, err := OpenJoystick(0)
	require.NoError(t, err)
	assert.Equal(t, "Joy-Con (L)", js.Name())

	// nothing read before the first refresh
	assert.Zero(t, js.Axis(0))
	assert.False(t, js.Button(1))

	fake.state = joystick.State{AxisData: []int{32767, -32768, 16384}, Buttons: 0b1010}
	require.NoError(t, js.Refresh())

	assert.Equal(t, 1.0, js.Axis(0))
	assert.Equal(t, -1.0, js.Axis(1), "-32768 clamps to -1")
	assert.InDelta(t, 0.5, js.Axis(2), 0.001)
	assert.Zero(t, js.Axis(7), "unknown axis reads centered")
	assert.Zero(t, js.Axis(-1))

	assert.False(t, js.Button(0))
	assert.True(t, js.Button(1))
	assert.True(t, js.Button(3))
	assert.False(t, js.Button(-1))
	assert.False(t, js.Button(40))

	fake.err = errors.New("device unplugged")
	assert.Error(t, js.Refresh())

	require.NoError(t, js.Close())
	assert.True(t, fake.closed)
}
