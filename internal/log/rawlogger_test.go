package log_test

import (
	"bytes"
	"testing"

	"github.com/Alia5/padlink/internal/log"
	"github.com/stretchr/testify/assert"
)

func TestRawLogger(t *testing.T) {
	tests := []struct {
		name     string
		in       bool
		data     []byte
		contains []string
		empty    bool
	}{
		{
			name:     "received json",
			in:       true,
			data:     []byte(`{"a":1}`),
			contains: []string{"RX datagram: 7 bytes", "7b 22 61", `text: {"a":1}`},
		},
		{
			name:     "sent binary",
			in:       false,
			data:     []byte{0x00, 0xff, 0x10},
			contains: []string{"TX datagram: 3 bytes", "hex: 00 ff 10"},
		},
		{
			name:  "empty payload",
			in:    true,
			data:  nil,
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log.NewRaw(&buf).Log(tt.in, tt.data)
			if tt.empty {
				assert.Zero(t, buf.Len())
				return
			}
			for _, c := range tt.contains {
				assert.Contains(t, buf.String(), c)
			}
			assert.NotContains(t, buf.String()[:len(buf.String())-1], "\n")
		})
	}
}

func TestRawLoggerNilWriter(t *testing.T) {
	assert.NotPanics(t, func() { log.NewRaw(nil).Log(true, []byte("x")) })
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelTrace, log.ParseLevel("trace"))
	assert.Equal(t, log.ParseLevel("info"), log.ParseLevel(""))
	assert.Equal(t, log.ParseLevel("info"), log.ParseLevel("bogus"))
}
