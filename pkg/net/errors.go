package net

import "github.com/pkg/errors"

// Sentinel errors for the transport layer. Operations wrap these with
// context via github.com/pkg/errors; use errors.Is or errors.Cause to test
// for a kind.
var (
	// ErrClosed reports I/O on a connection or listener that the peer or
	// the local side has already closed or shut down.
	ErrClosed error = &netError{msg: "use of closed network connection", temporary: false}

	// ErrTimeout reports an operation still pending after its deadline.
	ErrTimeout error = &netError{msg: "i/o timeout", timeout: true, temporary: true}

	// ErrInvalidAddr reports a malformed host:port string.
	ErrInvalidAddr = errors.New("invalid address")

	// ErrAddrInUse reports a bind to an address already in use.
	ErrAddrInUse = errors.New("address already in use")

	// ErrAddrUnavailable reports a bind to an address that cannot be
	// assigned locally.
	ErrAddrUnavailable = errors.New("cannot assign requested address")
)

type netError struct {
	msg       string
	timeout   bool
	temporary bool
}

func (e *netError) Error() string   { return e.msg }
func (e *netError) Timeout() bool   { return e.timeout }
func (e *netError) Temporary() bool { return e.temporary }
