// Package socket is the fd-level core shared by the concrete transports.
// It owns socket creation, address parsing and resolution, and poll-gated
// I/O that enforces the recorded deadlines.
package socket

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	gonet "github.com/mohankumar-rr-17944/gocxx/pkg/net"
)

// SplitHostPort splits "host:port" at the last colon. An empty host means
// all interfaces and is rendered as 0.0.0.0. The port must be an integer in
// [0, 65535]; anything else is ErrInvalidAddr.
func SplitHostPort(address string) (string, int, error) {
	i := strings.LastIndex(address, ":")
	if i < 0 {
		return "", 0, errors.Wrap(gonet.ErrInvalidAddr, address)
	}

	host := address[:i]
	if host == "" {
		host = "0.0.0.0"
	}

	port, err := strconv.Atoi(address[i+1:])
	if err != nil || port < 0 || port > 65535 {
		return "", 0, errors.Wrap(gonet.ErrInvalidAddr, address)
	}

	return host, port, nil
}

// ResolveIPv4 resolves host to its first IPv4 address. Literal IPv4
// addresses pass through without a lookup. Resolution is attempted fresh on
// every call; nothing is cached.
func ResolveIPv4(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
		return "", errors.Errorf("cannot resolve address: %s", host)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", errors.Errorf("cannot resolve address: %s", host)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}

	return "", errors.Errorf("cannot resolve address: %s", host)
}

func ipv4Bytes(ip string) ([4]byte, error) {
	var b [4]byte

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return b, errors.Wrap(gonet.ErrInvalidAddr, ip)
	}

	v4 := parsed.To4()
	if v4 == nil {
		return b, errors.Wrap(gonet.ErrInvalidAddr, ip)
	}

	copy(b[:], v4)
	return b, nil
}

func formatIPv4(b [4]byte) string {
	return net.IP(b[:]).String()
}
