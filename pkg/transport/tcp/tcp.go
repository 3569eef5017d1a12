// Package tcp provides the TCP transport: address resolution, dialing,
// listening, and a stream connection with half-close support.
package tcp

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/socket"
)

const backlog = 128

func checkNetwork(network string) (ok bool) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		ok = true
	}

	return
}

// Addr is a TCP endpoint.
type Addr struct {
	IP   string
	Port int
}

// Network returns the address's network name, "tcp".
func (a *Addr) Network() string { return "tcp" }

func (a *Addr) String() string { return a.IP + ":" + strconv.Itoa(a.Port) }

// ResolveAddr parses address as "host:port" and resolves the host to its
// first IPv4 address. Resolution is fresh on every call.
func ResolveAddr(network, address string) (*Addr, error) {
	if !checkNetwork(network) {
		return nil, errors.Errorf("tcp: unsupported network %s", network)
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

// Conn is a TCP stream connection.
type Conn struct {
	fd     *socket.FD
	local  *Addr
	remote *Addr
}

var _ net.Conn = (*Conn)(nil)

// Dial connects to the resolved address and reads back the OS-assigned
// local endpoint. On any failure the socket is closed before returning.
func Dial(network, address string) (*Conn, error) {
	raddr, err := ResolveAddr(network, address)
	if err != nil {
		return nil, err
	}

	fd, err := socket.Stream()
	if err != nil {
		return nil, err
	}

	if err = fd.Connect(raddr.IP, raddr.Port); err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "dial")
	}

	ip, port, err := fd.LocalName()
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "dial")
	}

	return &Conn{fd: fd, local: &Addr{IP: ip, Port: port}, remote: raddr}, nil
}

// Read performs a single receive. A clean zero-byte end of stream means the
// peer closed and is surfaced as ErrClosed, never as a zero-length success.
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.fd.Read(b)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, net.ErrClosed
	}
	return n, nil
}

// Write performs a single send. Partial writes return n.
func (c *Conn) Write(b []byte) (int, error) { return c.fd.Write(b) }

// Close releases the connection. It is idempotent; a second call is a nil
// no-op.
func (c *Conn) Close() error { return c.fd.Close() }

// CloseRead shuts down only the receive direction. It fails with ErrClosed
// if the connection is already fully closed.
func (c *Conn) CloseRead() error { return c.fd.ShutdownRead() }

// CloseWrite shuts down only the send direction. It fails with ErrClosed
// if the connection is already fully closed.
func (c *Conn) CloseWrite() error { return c.fd.ShutdownWrite() }

// LocalAddr returns the local endpoint.
func (c *Conn) LocalAddr() net.Addr { return c.local }

// RemoteAddr returns the peer's endpoint.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// SetReadDeadline sets the absolute time after which a pending Read fails
// with ErrTimeout.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.fd.SetReadDeadline(t) }

// SetWriteDeadline sets the absolute time after which a pending Write fails
// with ErrTimeout.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.fd.SetWriteDeadline(t) }

// SetDeadline sets both deadlines.
func (c *Conn) SetDeadline(t time.Time) error { return c.fd.SetDeadline(t) }

// Listener is a bound, listening TCP endpoint.
type Listener struct {
	fd   *socket.FD
	addr *Addr
}

var _ net.Listener = (*Listener)(nil)

// Listen binds a listening socket to the resolved address with SO_REUSEADDR
// set and a backlog of 128. Addr reports the actually-bound endpoint, so
// listening on port 0 yields the OS-assigned port.
func Listen(network, address string) (*Listener, error) {
	addr, err := ResolveAddr(network, address)
	if err != nil {
		return nil, err
	}

	fd, err := socket.Stream()
	if err != nil {
		return nil, err
	}

	if err = fd.SetReuseAddr(); err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "listen")
	}

	if err = fd.Bind(addr.IP, addr.Port); err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "listen")
	}

	if err = fd.Listen(backlog); err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "listen")
	}

	ip, port, err := fd.LocalName()
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "listen")
	}

	return &Listener{fd: fd, addr: &Addr{IP: ip, Port: port}}, nil
}

// AcceptTCP blocks until a peer connects. Closing the listener concurrently
// unblocks it with ErrClosed.
func (l *Listener) AcceptTCP() (*Conn, error) {
	fd, ip, port, err := l.fd.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "accept")
	}

	return &Conn{fd: fd, local: l.addr, remote: &Addr{IP: ip, Port: port}}, nil
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) { return l.AcceptTCP() }

// Close stops the listener. Idempotent; pending Accepts fail with ErrClosed.
func (l *Listener) Close() error { return l.fd.Close() }

// Addr returns the bound endpoint.
func (l *Listener) Addr() net.Addr { return l.addr }
