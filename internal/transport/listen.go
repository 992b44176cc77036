// Package transport owns the UDP/TCP listener setup and the per-thread
// serve loop that wires qdecode -> answer -> respasm together into the
// request path (spec.md §2's socket-accept-loop wiring, kept minimal
// per spec.md §1's explicit "socket accept loop internals beyond basic
// setup" non-goal).
package transport

import (
	"context"
	"net"
	"syscall"
)

// listenConfig returns a net.ListenConfig whose Control callback sets
// SO_REUSEPORT on every socket it creates, so UDPListeners independent
// goroutines can each bind the same port (the teacher achieves the same
// effect via miekg/dns.Server's ReusePort field; this module's hot path
// no longer goes through dns.Server, so the socket option is set
// directly here instead).
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

// listenUDP opens one SO_REUSEPORT UDP socket bound to addr.
func listenUDP(ctx context.Context, addr string) (*net.UDPConn, error) {
	lc := listenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// listenTCP opens the single TCP listener (no SO_REUSEPORT fan-out;
// TCP connections are comparatively rare and one accept loop is
// sufficient per spec.md's minimal-wiring non-goal).
func listenTCP(ctx context.Context, addr string) (*net.TCPListener, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return ln.(*net.TCPListener), nil
}
