//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly

package netlo

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket sets SO_REUSEADDR and a generous SO_RCVBUF on the UDP socket,
// so the demo command survives quick restarts and bursts of retransmitted
// segments without kernel-side drops ahead of the STCP receive window.
func tuneSocket(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, congestionCeilingBytes)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// congestionCeilingBytes is four times stcp's fixed 3072-octet congestion
// ceiling; kept here rather than imported to avoid netlo depending on stcp's
// unexported details.
const congestionCeilingBytes = 3072 * 4
