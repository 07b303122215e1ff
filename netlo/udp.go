package netlo

import (
	"net"

	"github.com/macaddino/stcp/stcp"
)

// UDPConn is a network substrate backed by a UDP socket, standing in for
// the raw network_send/network_recv primitives the spec leaves external.
// One UDPConn carries exactly one STCP connection: the peer address is
// fixed at construction or, for a passive open, latched from the first
// inbound datagram, matching the single-connection-per-Engine model.
type UDPConn struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// DialUDP opens a UDP socket. If remoteAddr is non-empty the peer is fixed
// immediately (the active-open case); otherwise the peer is learned from the
// first inbound datagram (the passive-open case), via Recv.
func DialUDP(localAddr, remoteAddr string) (*UDPConn, error) {
	var raddr *net.UDPAddr
	if remoteAddr != "" {
		var err error
		raddr, err = net.ResolveUDPAddr("udp", remoteAddr)
		if err != nil {
			return nil, err
		}
	}
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	if err := tuneSocket(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &UDPConn{conn: conn, peer: raddr}, nil
}

// Send transmits one full segment to the fixed peer address.
func (u *UDPConn) Send(segment []byte) error {
	_, err := u.conn.WriteToUDP(segment, u.peer)
	return err
}

// Recv reads one datagram into buf, discarding traffic from any address
// other than the fixed peer (the single-connection model has no demux). If
// no peer is fixed yet, the first datagram's sender is latched as the peer,
// matching a passively-opened connection learning its remote address from
// the handshake SYN.
func (u *UDPConn) Recv(buf []byte) (int, error) {
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return 0, err
		}
		if u.peer == nil {
			u.SetPeer(addr)
		} else if !addr.IP.Equal(u.peer.IP) || addr.Port != u.peer.Port {
			continue
		}
		if n < stcp.HeaderSize {
			continue
		}
		return n, nil
	}
}

// SetPeer latches the remote address a passively-opened socket should treat
// as its connection peer, learned from the first inbound datagram.
func (u *UDPConn) SetPeer(addr *net.UDPAddr) { u.peer = addr }

// LocalAddr returns the underlying socket's bound address.
func (u *UDPConn) LocalAddr() net.Addr { return u.conn.LocalAddr() }

// Close releases the underlying socket.
func (u *UDPConn) Close() error { return u.conn.Close() }
