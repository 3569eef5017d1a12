// Package udp provides the UDP transport: a packet connection usable in
// connected mode (a fixed peer bound at dial time) or unconnected mode
// (an explicit peer per operation).
package udp

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/socket"
)

func checkNetwork(network string) (ok bool) {
	switch network {
	case "udp", "udp4", "udp6":
		ok = true
	}

	return
}

// Addr is a UDP endpoint.
type Addr struct {
	IP   string
	Port int
}

// Network returns the address's network name, "udp".
func (a *Addr) Network() string { return "udp" }

func (a *Addr) String() string { return a.IP + ":" + strconv.Itoa(a.Port) }

// ResolveAddr parses address as "host:port" and resolves the host to its
// first IPv4 address.
func ResolveAddr(network, address string) (*Addr, error) {
	if !checkNetwork(network) {
		return nil, errors.Errorf("udp: unsupported network %s", network)
	}

	host, port, err := socket.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	ip, err := socket.ResolveIPv4(host)
	if err != nil {
		return nil, err
	}

	return &Addr{IP: ip, Port: port}, nil
}

// Conn is a UDP packet connection. The mode is fixed at creation: connected
// (Read/Write target the peer bound at dial time) or unconnected (every
// operation carries an explicit peer).
type Conn struct {
	fd        *socket.FD
	local     *Addr
	connected bool
}

var _ net.PacketConn = (*Conn)(nil)

// Dial creates a datagram socket, binds it to laddr when given, and
// connects it to raddr when given. With raddr set the socket enters
// connected mode and the OS rejects packets from any other source.
func Dial(network string, laddr, raddr *Addr) (*Conn, error) {
	if !checkNetwork(network) {
		return nil, errors.Errorf("udp: unsupported network %s", network)
	}

	fd, err := socket.Datagram()
	if err != nil {
		return nil, err
	}

	if laddr != nil {
		if err = fd.Bind(laddr.IP, laddr.Port); err != nil {
			fd.Close()
			return nil, errors.Wrap(err, "bind")
		}
	}

	if raddr != nil {
		if err = fd.Connect(raddr.IP, raddr.Port); err != nil {
			fd.Close()
			return nil, errors.Wrap(err, "connect")
		}
	}

	ip, port, err := fd.LocalName()
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "dial")
	}

	return &Conn{
		fd:        fd,
		local:     &Addr{IP: ip, Port: port},
		connected: raddr != nil,
	}, nil
}

// Listen binds an unconnected datagram socket to laddr. This is the mode a
// server answering multiple distinct peers needs.
func Listen(network string, laddr *Addr) (*Conn, error) {
	if laddr == nil {
		return nil, errors.New("udp: local address is required")
	}

	return Dial(network, laddr, nil)
}

// ListenSimple resolves address and listens on it with network "udp".
func ListenSimple(address string) (*Conn, error) {
	laddr, err := ResolveAddr("udp", address)
	if err != nil {
		return nil, err
	}

	return Listen("udp", laddr)
}

// Read receives a single datagram from the connected peer.
func (c *Conn) Read(b []byte) (int, error) { return c.fd.Read(b) }

// Write sends a single datagram to the connected peer.
func (c *Conn) Write(b []byte) (int, error) { return c.fd.Write(b) }

// ReadFrom receives a single datagram and the sender's address. The
// datagram is truncated if b is smaller than it; there is no reassembly.
func (c *Conn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := c.ReadFromUDP(b)
	if err != nil {
		return n, nil, err
	}
	return n, addr, nil
}

// ReadFromUDP is ReadFrom with a concrete address type.
func (c *Conn) ReadFromUDP(b []byte) (int, *Addr, error) {
	n, ip, port, err := c.fd.ReadFrom(b)
	if err != nil {
		return 0, nil, err
	}
	return n, &Addr{IP: ip, Port: port}, nil
}

// WriteTo sends a single datagram to addr, which must be a *udp.Addr. In
// connected mode the address is ignored and the datagram goes to the bound
// peer, mirroring what the OS does with a connected socket.
func (c *Conn) WriteTo(b []byte, addr net.Addr) (int, error) {
	udpAddr, ok := addr.(*Addr)
	if !ok {
		return 0, errors.New("udp: address must be a udp address")
	}

	return c.WriteToUDP(b, udpAddr)
}

// WriteToUDP is WriteTo with a concrete address type.
func (c *Conn) WriteToUDP(b []byte, addr *Addr) (int, error) {
	if c.connected {
		return c.fd.Write(b)
	}

	return c.fd.WriteTo(b, addr.IP, addr.Port)
}

// Close releases the connection. Idempotent.
func (c *Conn) Close() error { return c.fd.Close() }

// LocalAddr returns the OS-assigned local endpoint.
func (c *Conn) LocalAddr() net.Addr { return c.local }

// SetReadDeadline sets the absolute time after which a pending read fails
// with ErrTimeout.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.fd.SetReadDeadline(t) }

// SetWriteDeadline sets the absolute time after which a pending write fails
// with ErrTimeout.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.fd.SetWriteDeadline(t) }

// SetDeadline sets both deadlines.
func (c *Conn) SetDeadline(t time.Time) error { return c.fd.SetDeadline(t) }
