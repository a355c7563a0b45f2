// Package transport carries command datagrams over UDP.
package transport

import (
	"fmt"
	"net"

	"github.com/Alia5/padlink/internal/log"
)

// Sender writes datagrams to a single destination. Delivery is best effort.
type Sender struct {
	conn *net.UDPConn
	raw  log.RawLogger
	dest string
}

// Dial resolves dest (host:port) and returns a connected Sender.
// A nil raw logger disables datagram tracing.
func Dial(dest string, raw log.RawLogger) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", dest, err)
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Sender{conn: conn, raw: raw, dest: addr.String()}, nil
}

// Send transmits one datagram. Errors are transient (e.g. ICMP unreachable
// reported on a later write) and the caller is expected to keep going.
func (s *Sender) Send(payload []byte) error {
	s.raw.Log(false, payload)
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("send to %s: %w", s.dest, err)
	}
	return nil
}

// Dest returns the resolved destination address.
func (s *Sender) Dest() string { return s.dest }

func (s *Sender) Close() error { return s.conn.Close() }
