// Package net defines the transport-neutral contracts shared by every
// concrete transport: addresses, stream connections, listeners and packet
// connections.
package net

import (
	"net"
	"time"
)

// Addr represents a network end point address.
//
// The two methods Network and String conventionally return strings
// that can be passed as the arguments to Dial, but the exact form
// and meaning of the strings is up to the implementation.
type Addr = net.Addr

// An Error represents a network error.
type Error interface {
	error
	Timeout() bool   // Is the error a timeout?
	Temporary() bool // Is the error temporary?
}

// Conn is a bidirectional, ordered byte-stream connection to a single peer.
//
// A Conn is created already connected, by a transport's Dial or by a
// Listener's Accept. Close is idempotent. Deadlines are absolute points in
// time; a blocking Read or Write still pending once its deadline passes
// fails with ErrTimeout.
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error

	LocalAddr() Addr
	RemoteAddr() Addr

	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Listener is a bound, listening endpoint that yields Conns as peers
// connect. Closing a Listener causes any pending or future Accept to fail
// with ErrClosed.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() Addr
}

// PacketConn is a connectionless socket exchanging discrete datagrams with
// explicit peer addresses. Each ReadFrom returns at most one datagram,
// truncated if the buffer is smaller than the datagram.
type PacketConn interface {
	ReadFrom(b []byte) (int, Addr, error)
	WriteTo(b []byte, addr Addr) (int, error)
	Close() error

	LocalAddr() Addr

	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
