package logsink_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/sink"
	"github.com/Alia5/padlink/sink/logsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkLogsChangesOnly(t *testing.T) {
	var buf bytes.Buffer
	s := logsink.New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	require.NoError(t, s.WaitConnected(t.Context()))
	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, sink.Connected, st)

	pressed := device.State{StickX: 50, A: true}
	for _, st := range []device.State{device.Neutral(), pressed, pressed, device.Neutral()} {
		require.NoError(t, s.Apply(st))
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, uint64(4), s.Frames())
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=\"device state\""))
	assert.Equal(t, 1, strings.Count(buf.String(), "log sink closed"))
	assert.NotContains(t, buf.String(), "msg=frame")
}
