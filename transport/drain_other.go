//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

const pollWindow = 200 * time.Microsecond

func tryRead(c *net.UDPConn, buf []byte) (int, bool, error) {
	if err := c.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, false, err
	}
	n, _, err := c.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}
