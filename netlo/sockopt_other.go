//go:build !(linux || freebsd || openbsd || darwin || netbsd || dragonfly)

package netlo

import "net"

// tuneSocket is a no-op on platforms without golang.org/x/sys/unix socket
// option support; the UDP substrate still works, just without the tuning.
func tuneSocket(conn *net.UDPConn) error { return nil }
