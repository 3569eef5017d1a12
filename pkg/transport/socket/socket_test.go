package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	gonet "github.com/mohankumar-rr-17944/gocxx/pkg/net"
)

func TestSplitHostPort(t *testing.T) {
	t.Run("HostAndPort", func(t *testing.T) {
		host, port, err := SplitHostPort("127.0.0.1:8080")
		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", host)
		assert.Equal(t, 8080, port)
	})

	t.Run("EmptyHost", func(t *testing.T) {
		host, port, err := SplitHostPort(":9000")
		assert.NoError(t, err)
		assert.Equal(t, "0.0.0.0", host)
		assert.Equal(t, 9000, port)
	})

	t.Run("NoColon", func(t *testing.T) {
		_, _, err := SplitHostPort("127.0.0.1")
		assert.ErrorIs(t, err, gonet.ErrInvalidAddr)
	})

	t.Run("PortNotNumeric", func(t *testing.T) {
		_, _, err := SplitHostPort("127.0.0.1:http")
		assert.ErrorIs(t, err, gonet.ErrInvalidAddr)
	})

	t.Run("PortOutOfRange", func(t *testing.T) {
		_, _, err := SplitHostPort("127.0.0.1:70000")
		assert.ErrorIs(t, err, gonet.ErrInvalidAddr)

		_, _, err = SplitHostPort("127.0.0.1:-1")
		assert.ErrorIs(t, err, gonet.ErrInvalidAddr)
	})
}

func TestResolveIPv4(t *testing.T) {
	t.Run("Literal", func(t *testing.T) {
		ip, err := ResolveIPv4("10.1.2.3")
		assert.NoError(t, err)
		assert.Equal(t, "10.1.2.3", ip)
	})

	t.Run("Localhost", func(t *testing.T) {
		ip, err := ResolveIPv4("localhost")
		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", ip)
	})

	t.Run("Unresolvable", func(t *testing.T) {
		_, err := ResolveIPv4("no-such-host.invalid")
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "no-such-host.invalid")
		}
	})
}
