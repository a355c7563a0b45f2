package transport_test

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Alia5/padlink/internal/log"
	"github.com/Alia5/padlink/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (*transport.Listener, *transport.Sender) {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	s, err := transport.Dial(l.LocalAddr().String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return l, s
}

func TestTryReadEmpty(t *testing.T) {
	l, _ := newPair(t)
	buf := make([]byte, transport.MaxDatagram)

	start := time.Now()
	n, ok, err := l.TryRead(buf)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "must not block")
}

func TestTryReadDrainsInOrder(t *testing.T) {
	l, s := newPair(t)
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, p := range payloads {
		require.NoError(t, s.Send(p))
	}

	buf := make([]byte, transport.MaxDatagram)
	var got [][]byte
	require.Eventually(t, func() bool {
		for {
			n, ok, err := l.TryRead(buf)
			if err != nil || !ok {
				break
			}
			got = append(got, append([]byte(nil), buf[:n]...))
		}
		return len(got) == len(payloads)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, payloads, got)

	_, ok, err := l.TryRead(buf)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadTimeout(t *testing.T) {
	l, s := newPair(t)
	buf := make([]byte, transport.MaxDatagram)

	_, _, err := l.Read(buf, 20*time.Millisecond)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))

	require.NoError(t, s.Send([]byte("hello")))
	n, from, err := l.Read(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.NotNil(t, from)

	// The deadline is cleared, so non-blocking reads still work afterwards.
	_, ok, err := l.TryRead(buf)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRawTrace(t *testing.T) {
	var rx, tx bytes.Buffer
	l, err := transport.Listen("127.0.0.1:0", log.NewRaw(&rx))
	require.NoError(t, err)
	defer l.Close()
	s, err := transport.Dial(l.LocalAddr().String(), log.NewRaw(&tx))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Send([]byte(`{"lx":0}`)))
	buf := make([]byte, transport.MaxDatagram)
	_, _, err = l.Read(buf, time.Second)
	require.NoError(t, err)

	assert.Contains(t, tx.String(), "TX datagram: 8 bytes")
	assert.Contains(t, rx.String(), "RX datagram: 8 bytes")
}

func TestDialBadAddress(t *testing.T) {
	_, err := transport.Dial("not-an-address", nil)
	assert.Error(t, err)
	_, err = transport.Listen("127.0.0.1:99999", nil)
	assert.Error(t, err)
}
