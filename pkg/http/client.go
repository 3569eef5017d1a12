package http

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tcp"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tls"
)

// Get fetches url over a fresh connection and reads the response until the
// peer closes. https dials a certificate-verifying TLS connection; there is
// no way to skip verification through this entry point.
func Get(url string) (*Response, error) {
	return do("GET", url, "", nil)
}

// Post sends body with the given Content-Type and reads the response until
// the peer closes.
func Post(url, contentType string, body []byte) (*Response, error) {
	return do("POST", url, contentType, body)
}

func do(method, url, contentType string, body []byte) (*Response, error) {
	address, path, secure, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	if secure {
		conn, err = tls.Dial("tcp", address, &tls.Config{})
	} else {
		conn, err = tcp.Dial("tcp", address)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var req strings.Builder
	req.WriteString(method + " " + path + " HTTP/1.1\r\n")
	req.WriteString("Host: " + address + "\r\n")
	if method == "POST" {
		req.WriteString("Content-Type: " + contentType + "\r\n")
		req.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	}
	req.WriteString("Connection: close\r\n\r\n")
	req.Write(body)

	// One write for header and body, so the peer's first read can see the
	// complete message.
	if _, err = writeFull(conn, []byte(req.String())); err != nil {
		return nil, errors.Wrap(err, "write request")
	}

	return parseResponse(readAll(conn))
}

// parseURL accepts only http:// and https:// URLs, splits address from
// path at the first slash, and appends the scheme's default port when the
// address carries none.
func parseURL(url string) (address, path string, secure bool, err error) {
	var rest, defaultPort string

	switch {
	case strings.HasPrefix(url, "https://"):
		secure = true
		rest = url[len("https://"):]
		defaultPort = "443"
	case strings.HasPrefix(url, "http://"):
		rest = url[len("http://"):]
		defaultPort = "80"
	default:
		return "", "", false, errors.New("invalid URL: must start with http:// or https://")
	}

	path = "/"
	if i := strings.Index(rest, "/"); i >= 0 {
		address, path = rest[:i], rest[i:]
	} else {
		address = rest
	}

	if !strings.Contains(address, ":") {
		address += ":" + defaultPort
	}

	return address, path, secure, nil
}

func parseResponse(raw []byte) (*Response, error) {
	head, body := splitMessage(raw)
	lines := headLines(head)
	if len(lines) == 0 || lines[0] == "" {
		return nil, errors.Wrap(ErrMalformedMessage, "no status line")
	}

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		return nil, errors.Wrap(ErrMalformedMessage, "invalid status line")
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, "invalid status code")
	}

	resp := &Response{
		Proto:      parts[0],
		StatusCode: code,
		Header:     make(Header),
		Body:       body,
	}
	if len(parts) == 3 {
		resp.Status = strings.TrimSpace(parts[2])
	}

	parseHeaders(lines[1:], resp.Header)
	return resp, nil
}
