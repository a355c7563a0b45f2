package viiper

import (
	"encoding/binary"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/normalize"
)

// DeviceType is the VIIPER device created for the bridged pad.
const DeviceType = "xbox360"

// Xbox 360 stream frame: buttons u32, lt u8, rt u8, lx ly rx ry i16, all
// little endian.
const frameSize = 14

const (
	buttonStart = 0x0010
	buttonA     = 0x1000
	buttonB     = 0x2000
	buttonX     = 0x4000
	buttonY     = 0x8000
)

// encodeFrame maps a device state onto an Xbox 360 pad. Switch face buttons
// keep their labels, ZR drives the right trigger and Plus is Start.
func encodeFrame(st device.State) []byte {
	var buttons uint32
	for _, b := range []struct {
		on   bool
		mask uint32
	}{
		{st.A, buttonA},
		{st.B, buttonB},
		{st.X, buttonX},
		{st.Y, buttonY},
		{st.Plus, buttonStart},
	} {
		if b.on {
			buttons |= b.mask
		}
	}

	var rt uint8
	if st.ZR {
		rt = 0xff
	}

	b := make([]byte, frameSize)
	binary.LittleEndian.PutUint32(b[0:4], buttons)
	b[4] = 0
	b[5] = rt
	binary.LittleEndian.PutUint16(b[6:8], uint16(scaleAxis(st.StickX)))
	binary.LittleEndian.PutUint16(b[8:10], uint16(scaleAxis(st.StickY)))
	return b
}

// scaleAxis maps device units (±100) onto the int16 stick range.
func scaleAxis(v int) int16 {
	v = max(-normalize.AxisScale, min(normalize.AxisScale, v))
	return int16(v * 32767 / normalize.AxisScale)
}
