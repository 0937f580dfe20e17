package rudp

import (
	"net"
	"time"
)

// Conn is the datagram socket primitive the protocol core depends on:
// send-to, receive-from, and a read deadline for the bounded readiness wait.
// Binding the socket and resolving peer addresses are left to callers (see
// cmd/); *net.UDPConn satisfies this interface directly.
type Conn interface {
	ReadFrom(b []byte) (n int, addr net.Addr, err error)
	WriteTo(b []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}
