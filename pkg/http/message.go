package http

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
)

// ErrMalformedMessage reports an unparseable request or response. The
// server's reaction is to close the connection without responding.
var ErrMalformedMessage = errors.New("malformed http message")

// ErrRequestTooLarge reports a request whose header block exceeded the
// accumulation cap before the terminator arrived.
var ErrRequestTooLarge = errors.New("request header block too large")

var crlf2 = []byte("\r\n\r\n")

// splitMessage cuts raw at the header terminator. Without a terminator the
// whole input is the head and the body is empty, matching how a peer that
// closed early is parsed.
func splitMessage(raw []byte) (string, []byte) {
	if i := bytes.Index(raw, crlf2); i >= 0 {
		return string(raw[:i]), raw[i+len(crlf2):]
	}
	return string(raw), nil
}

// parseHeaders reads "Key: Value" lines into h, lower-casing keys and
// trimming whitespace. Lines without a colon are skipped.
func parseHeaders(lines []string, h Header) {
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		h[key] = value
	}
}

// headLines splits a header block into lines, tolerating bare newlines the
// way the framing's line-oriented peers produce them.
func headLines(head string) []string {
	lines := strings.Split(head, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// writeFull writes all of p, looping over the transport's single-syscall
// partial writes.
func writeFull(conn net.Conn, p []byte) (int, error) {
	var total int
	for total < len(p) {
		n, err := conn.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// readAll drains conn until the peer closes or an error ends the stream.
// With no keep-alive on either side, close is the body delimiter.
func readAll(conn net.Conn) []byte {
	var raw []byte
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
		}
		if err != nil || n == 0 {
			return raw
		}
	}
}
