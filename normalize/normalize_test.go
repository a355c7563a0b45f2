package normalize_test

import (
	"math"
	"testing"

	"github.com/Alia5/padlink/normalize"
	"github.com/stretchr/testify/assert"
)

func TestDeadzone(t *testing.T) {
	const th = normalize.DefaultDeadzone

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "zero", in: 0, want: 0},
		{name: "noise positive", in: 0.05, want: 0},
		{name: "noise negative", in: -0.0799, want: 0},
		{name: "exactly threshold", in: 0.08, want: 0.08},
		{name: "exactly negative threshold", in: -0.08, want: -0.08},
		{name: "deflected", in: 0.5, want: 0.5},
		{name: "full negative", in: -1, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Deadzone(tt.in, th))
		})
	}
}

func TestDeadzoneSweep(t *testing.T) {
	const th = 0.08
	for i := -1000; i <= 1000; i++ {
		v := float64(i) / 1000
		got := normalize.Deadzone(v, th)
		if math.Abs(v) < th {
			assert.Zero(t, got, "v=%v", v)
		} else {
			assert.Equal(t, v, got, "v=%v", v)
		}
	}
}

func TestClamp(t *testing.T) {
	inputs := []float64{-1e9, -3, -1.0001, -1, -0.3, 0, 0.7, 1, 1.5, 42, math.Inf(1), math.Inf(-1)}
	for _, v := range inputs {
		c := normalize.Clamp(v)
		assert.GreaterOrEqual(t, c, -1.0)
		assert.LessOrEqual(t, c, 1.0)
		assert.Equal(t, c, normalize.Clamp(c), "clamp must be idempotent for %v", v)
	}
	assert.Equal(t, 0.0, normalize.Clamp(math.NaN()))
	assert.Equal(t, 1.0, normalize.Clamp(2))
	assert.Equal(t, -1.0, normalize.Clamp(-2))
	assert.Equal(t, 0.25, normalize.Clamp(0.25))
}

func TestToDeviceAxis(t *testing.T) {
	assert.Equal(t, 0, normalize.ToDeviceAxis(0))
	assert.Equal(t, 100, normalize.ToDeviceAxis(1))
	assert.Equal(t, -100, normalize.ToDeviceAxis(-1))
	assert.Equal(t, 100, normalize.ToDeviceAxis(3), "out of range input saturates")
	assert.Equal(t, -100, normalize.ToDeviceAxis(-3))

	// exact halves go to the even neighbour
	assert.Equal(t, 12, normalize.ToDeviceAxis(0.125))
	assert.Equal(t, -12, normalize.ToDeviceAxis(-0.125))
	assert.Equal(t, 38, normalize.ToDeviceAxis(0.375))
	assert.Equal(t, 62, normalize.ToDeviceAxis(0.625))
	assert.Equal(t, 50, normalize.ToDeviceAxis(0.504))
	assert.Equal(t, 51, normalize.ToDeviceAxis(0.506))
}

func TestToDeviceAxisMonotonic(t *testing.T) {
	prev := normalize.ToDeviceAxis(-1.5)
	for i := -1500; i <= 1500; i++ {
		cur := normalize.ToDeviceAxis(float64(i) / 1000)
		assert.GreaterOrEqual(t, cur, prev, "not monotonic at %d", i)
		prev = cur
	}
}

func TestFlipY(t *testing.T) {
	assert.Equal(t, 1.0, normalize.FlipY(-1))
	assert.Equal(t, -0.4, normalize.FlipY(0.4))
	assert.False(t, math.Signbit(normalize.FlipY(0)), "flip of zero stays positive zero")
}
