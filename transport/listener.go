package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Alia5/padlink/internal/log"
)

// MaxDatagram is the receive buffer size used by callers. Command datagrams
// are far smaller; anything longer is truncated and will fail to parse.
const MaxDatagram = 2048

// Listener receives datagrams on a bound UDP port.
type Listener struct {
	conn *net.UDPConn
	raw  log.RawLogger
}

// Listen binds addr (":5005" binds all interfaces).
func Listen(addr string, raw log.RawLogger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Listener{conn: conn, raw: raw}, nil
}

// TryRead returns the next pending datagram without blocking. ok is false
// when nothing is queued.
func (l *Listener) TryRead(buf []byte) (n int, ok bool, err error) {
	n, ok, err = tryRead(l.conn, buf)
	if ok {
		l.raw.Log(true, buf[:n])
	}
	return n, ok, err
}

// Read blocks for up to timeout. A timeout is reported as os.ErrDeadlineExceeded.
func (l *Listener) Read(buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := l.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, err
	}
	defer func() { _ = l.conn.SetReadDeadline(time.Time{}) }()

	n, from, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil, os.ErrDeadlineExceeded
		}
		return 0, nil, err
	}
	l.raw.Log(true, buf[:n])
	return n, from, nil
}

func (l *Listener) LocalAddr() net.Addr { return l.conn.LocalAddr() }

func (l *Listener) Close() error { return l.conn.Close() }
