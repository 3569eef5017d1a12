//go:build !windows

package socket

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
)

// pollTick bounds how long a blocked operation goes without rechecking the
// closed flag, so a concurrent Close unblocks pending I/O and Accept.
const pollTick = 100 * time.Millisecond

// FD owns exactly one OS socket handle. All I/O goes through a poll gate
// that honours the recorded deadlines. Sockets are non-blocking; each
// Read/Write performs a single syscall once the gate reports readiness.
type FD struct {
	mu        sync.Mutex
	fd        int
	closed    bool
	rdeadline time.Time
	wdeadline time.Time
}

// Stream creates an IPv4 stream socket.
func Stream() (*FD, error) {
	s, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mapErrno(err)
	}
	return &FD{fd: s}, nil
}

// Datagram creates an IPv4 datagram socket.
func Datagram() (*FD, error) {
	s, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, mapErrno(err)
	}
	return &FD{fd: s}, nil
}

func (fd *FD) raw() (int, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.closed {
		return 0, net.ErrClosed
	}
	return fd.fd, nil
}

// Close releases the handle. It is idempotent: the second and subsequent
// calls are nil no-ops, and the handle is never released twice.
func (fd *FD) Close() error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.closed {
		return nil
	}
	fd.closed = true

	if err := unix.Close(fd.fd); err != nil {
		return mapErrno(err)
	}
	return nil
}

// ShutdownRead half-closes the receive direction.
func (fd *FD) ShutdownRead() error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}
	if err := unix.Shutdown(raw, unix.SHUT_RD); err != nil {
		return mapErrno(err)
	}
	return nil
}

// ShutdownWrite half-closes the send direction.
func (fd *FD) ShutdownWrite() error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}
	if err := unix.Shutdown(raw, unix.SHUT_WR); err != nil {
		return mapErrno(err)
	}
	return nil
}

// SetReuseAddr sets SO_REUSEADDR so a restarted listener does not fail on a
// lingering socket in teardown state.
func (fd *FD) SetReuseAddr() error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return mapErrno(err)
	}
	return nil
}

// Bind binds the socket to ip:port.
func (fd *FD) Bind(ip string, port int) error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}

	addr, err := ipv4Bytes(ip)
	if err != nil {
		return err
	}

	if err := unix.Bind(raw, &unix.SockaddrInet4{Port: port, Addr: addr}); err != nil {
		return mapErrno(err)
	}
	return nil
}

// Listen marks the socket as accepting connections.
func (fd *FD) Listen(backlog int) error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}
	if err := unix.Listen(raw, backlog); err != nil {
		return mapErrno(err)
	}
	return nil
}

// Connect connects the socket to ip:port. The socket is non-blocking, so
// an in-progress connect is completed by polling for writability and then
// reading SO_ERROR.
func (fd *FD) Connect(ip string, port int) error {
	raw, err := fd.raw()
	if err != nil {
		return err
	}

	addr, err := ipv4Bytes(ip)
	if err != nil {
		return err
	}

	err = unix.Connect(raw, &unix.SockaddrInet4{Port: port, Addr: addr})
	switch err {
	case nil:
		return nil
	case unix.EINPROGRESS, unix.EINTR:
	default:
		return mapErrno(err)
	}

	if err := fd.wait(unix.POLLOUT, time.Time{}); err != nil {
		return err
	}

	soerr, err := unix.GetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return mapErrno(err)
	}
	if soerr != 0 {
		return mapErrno(unix.Errno(soerr))
	}
	return nil
}

// LocalName reports the OS-assigned local endpoint of the socket.
func (fd *FD) LocalName() (string, int, error) {
	raw, err := fd.raw()
	if err != nil {
		return "", 0, err
	}

	sa, err := unix.Getsockname(raw)
	if err != nil {
		return "", 0, mapErrno(err)
	}

	ip, port := sockaddrIPPort(sa)
	return ip, port, nil
}

// Accept blocks until a peer connects and returns the accepted handle with
// the peer's endpoint. A concurrent Close unblocks it with ErrClosed.
func (fd *FD) Accept() (*FD, string, int, error) {
	for {
		if err := fd.wait(unix.POLLIN, time.Time{}); err != nil {
			return nil, "", 0, err
		}

		raw, err := fd.raw()
		if err != nil {
			return nil, "", 0, err
		}

		nfd, sa, err := unix.Accept4(raw, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
		case unix.EINTR, unix.EAGAIN, unix.ECONNABORTED:
			continue
		default:
			return nil, "", 0, mapErrno(err)
		}

		ip, port := sockaddrIPPort(sa)
		return &FD{fd: nfd}, ip, port, nil
	}
}

// Read performs a single recv once the poll gate reports readable data.
// A clean end of stream is reported as (0, nil); the caller decides what
// that means for its protocol.
func (fd *FD) Read(b []byte) (int, error) {
	for {
		if err := fd.wait(unix.POLLIN, fd.readDeadline()); err != nil {
			return 0, err
		}

		raw, err := fd.raw()
		if err != nil {
			return 0, err
		}

		n, err := unix.Read(raw, b)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return 0, mapErrno(err)
		}
	}
}

// Write performs a single send once the poll gate reports writability.
// Partial writes return n without looping.
func (fd *FD) Write(b []byte) (int, error) {
	for {
		if err := fd.wait(unix.POLLOUT, fd.writeDeadline()); err != nil {
			return 0, err
		}

		raw, err := fd.raw()
		if err != nil {
			return 0, err
		}

		n, err := unix.SendmsgN(raw, b, nil, nil, unix.MSG_NOSIGNAL)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return 0, mapErrno(err)
		}
	}
}

// ReadFrom receives a single datagram and the sender's endpoint.
func (fd *FD) ReadFrom(b []byte) (int, string, int, error) {
	for {
		if err := fd.wait(unix.POLLIN, fd.readDeadline()); err != nil {
			return 0, "", 0, err
		}

		raw, err := fd.raw()
		if err != nil {
			return 0, "", 0, err
		}

		n, sa, err := unix.Recvfrom(raw, b, 0)
		switch err {
		case nil:
			ip, port := sockaddrIPPort(sa)
			return n, ip, port, nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return 0, "", 0, mapErrno(err)
		}
	}
}

// WriteTo sends a single datagram to ip:port.
func (fd *FD) WriteTo(b []byte, ip string, port int) (int, error) {
	addr, err := ipv4Bytes(ip)
	if err != nil {
		return 0, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: addr}

	for {
		if err := fd.wait(unix.POLLOUT, fd.writeDeadline()); err != nil {
			return 0, err
		}

		raw, err := fd.raw()
		if err != nil {
			return 0, err
		}

		n, err := unix.SendmsgN(raw, b, nil, sa, unix.MSG_NOSIGNAL)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return 0, mapErrno(err)
		}
	}
}

// SetReadDeadline records the absolute time after which a pending Read
// fails with ErrTimeout. The zero time means no deadline.
func (fd *FD) SetReadDeadline(t time.Time) error {
	fd.mu.Lock()
	fd.rdeadline = t
	fd.mu.Unlock()
	return nil
}

// SetWriteDeadline records the absolute time after which a pending Write
// fails with ErrTimeout. The zero time means no deadline.
func (fd *FD) SetWriteDeadline(t time.Time) error {
	fd.mu.Lock()
	fd.wdeadline = t
	fd.mu.Unlock()
	return nil
}

// SetDeadline sets both deadlines.
func (fd *FD) SetDeadline(t time.Time) error {
	fd.mu.Lock()
	fd.rdeadline = t
	fd.wdeadline = t
	fd.mu.Unlock()
	return nil
}

func (fd *FD) readDeadline() time.Time {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.rdeadline
}

func (fd *FD) writeDeadline() time.Time {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.wdeadline
}

// wait blocks until the socket is ready for events, the deadline passes, or
// the FD is closed. Polling is capped at pollTick so the closed flag and
// deadline are rechecked even while no traffic arrives.
func (fd *FD) wait(events int16, deadline time.Time) error {
	for {
		fd.mu.Lock()
		closed, raw := fd.closed, fd.fd
		fd.mu.Unlock()

		if closed {
			return net.ErrClosed
		}

		timeout := pollTick
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return net.ErrTimeout
			}
			if remaining < timeout {
				timeout = remaining
			}
		}

		fds := []unix.PollFd{{Fd: int32(raw), Events: events}}
		n, err := unix.Poll(fds, int(timeout.Milliseconds())+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return mapErrno(err)
		}
		if n > 0 {
			if fds[0].Revents&unix.POLLNVAL != 0 {
				return net.ErrClosed
			}
			return nil
		}
	}
}

func sockaddrIPPort(sa unix.Sockaddr) (string, int) {
	if a, ok := sa.(*unix.SockaddrInet4); ok {
		return formatIPv4(a.Addr), a.Port
	}
	return "", 0
}

func mapErrno(err error) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return err
	}

	switch errno {
	case unix.ETIMEDOUT:
		return net.ErrTimeout
	case unix.ECONNRESET, unix.ENOTCONN, unix.EPIPE, unix.EBADF:
		return net.ErrClosed
	case unix.EADDRINUSE:
		return net.ErrAddrInUse
	case unix.EADDRNOTAVAIL:
		return net.ErrAddrUnavailable
	default:
		return errors.Wrap(err, "socket")
	}
}
