//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// tryRead issues a single recvfrom with MSG_DONTWAIT. The runtime poller
// would park the goroutine instead, and a past deadline never reaches the
// socket at all.
func tryRead(c *net.UDPConn, buf []byte) (int, bool, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, false, err
	}
	var (
		n    int
		rerr error
	)
	err = rc.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return 0, false, err
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) || errors.Is(rerr, unix.EINTR) {
			return 0, false, nil
		}
		return 0, false, rerr
	}
	return n, true, nil
}
