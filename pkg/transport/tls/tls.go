// Package tls wraps the TCP transport with a secure channel. A tls.Conn
// composes a handshake session over a *tcp.Conn rather than reimplementing
// the stream; once the handshake completes all I/O is mediated by the
// session, never the raw socket.
package tls

import (
	stdtls "crypto/tls"
	"crypto/x509"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/socket"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tcp"
)

// ErrHandshake reports a failed TLS negotiation or certificate trust
// decision.
var ErrHandshake = errors.New("tls handshake failed")

// Config carries the certificate material for a dial or listen. It is read
// at use time and never mutated afterwards.
type Config struct {
	CertFile string // client or server identity certificate, PEM
	KeyFile  string // private key matching CertFile, PEM
	CAFile   string // CA bundle to trust instead of the system store

	// InsecureSkipVerify disables certificate verification entirely.
	// Unsafe; test and development use only.
	InsecureSkipVerify bool
}

// The system trust store is loaded at most once per process.
var (
	rootsOnce sync.Once
	roots     *x509.CertPool
	rootsErr  error
)

func systemRoots() (*x509.CertPool, error) {
	rootsOnce.Do(func() {
		roots, rootsErr = x509.SystemCertPool()
	})
	return roots, rootsErr
}

// clientConfig resolves the trust policy: skip-verify wins, then an
// explicit CA bundle, then the system store. Cert and key form the client's
// own identity and must be set together.
func (c *Config) clientConfig(serverName string) (*stdtls.Config, error) {
	cfg := &stdtls.Config{ServerName: serverName}

	switch {
	case c.InsecureSkipVerify:
		cfg.InsecureSkipVerify = true
	case c.CAFile != "":
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "read ca file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("tls: no certificates found in %s", c.CAFile)
		}
		cfg.RootCAs = pool
	default:
		pool, err := systemRoots()
		if err != nil {
			return nil, errors.Wrap(err, "system trust store")
		}
		cfg.RootCAs = pool
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errors.New("tls: certificate and key files must be set together")
	}
	if c.CertFile != "" {
		cert, err := stdtls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client certificate")
		}
		cfg.Certificates = []stdtls.Certificate{cert}
	}

	return cfg, nil
}

// serverConfig loads the listener's identity. Loading the pair also
// verifies the key matches the certificate, so a mismatch fails here
// rather than on the first accepted connection.
func (c *Config) serverConfig() (*stdtls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, errors.New("tls: certificate and key files are required")
	}

	cert, err := stdtls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "load server certificate")
	}

	return &stdtls.Config{Certificates: []stdtls.Certificate{cert}}, nil
}

// Conn is a TCP connection whose reads and writes operate through a secure
// session. The Conn owns the underlying *tcp.Conn; the session closes
// through it, so there is exactly one fd owner and no double close.
type Conn struct {
	session *stdtls.Conn
	tcp     *tcp.Conn

	mu     sync.Mutex
	closed bool
}

var _ net.Conn = (*Conn)(nil)

// Dial establishes a plain TCP connection, then drives a client handshake
// over it. The dialed hostname becomes both the SNI value and the name
// verified against the peer's certificate. On handshake failure the TCP
// connection is closed.
func Dial(network, address string, config *Config) (*Conn, error) {
	host, _, err := socket.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	cfg, err := config.clientConfig(host)
	if err != nil {
		return nil, err
	}

	raw, err := tcp.Dial(network, address)
	if err != nil {
		return nil, err
	}

	session := stdtls.Client(raw, cfg)
	if err := session.Handshake(); err != nil {
		raw.Close()
		return nil, errors.Wrapf(ErrHandshake, "dial %s: %v", address, err)
	}

	return &Conn{session: session, tcp: raw}, nil
}

// Read delegates to the session. A clean end of stream is a zero-byte
// success, since that is how a graceful TLS shutdown is observed. A timeout
// on the underlying transport is a retryable zero-byte outcome; only Write
// surfaces timeouts (the two directions are deliberately asymmetric).
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.session.Read(b)
	if err != nil {
		if err == io.EOF {
			return n, nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// Write delegates to the session. Timeouts surface as errors.
func (c *Conn) Write(b []byte) (int, error) { return c.session.Write(b) }

// Close performs a graceful session shutdown before releasing the raw
// socket. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.session.Close()
	c.tcp.Close()
	return err
}

// LocalAddr returns the local endpoint of the underlying connection.
func (c *Conn) LocalAddr() net.Addr { return c.tcp.LocalAddr() }

// RemoteAddr returns the peer's endpoint.
func (c *Conn) RemoteAddr() net.Addr { return c.tcp.RemoteAddr() }

// SetReadDeadline sets the read deadline on the underlying connection.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.tcp.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline on the underlying connection.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.tcp.SetWriteDeadline(t) }

// SetDeadline sets both deadlines on the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error { return c.tcp.SetDeadline(t) }

// Listener accepts TCP connections and performs a fresh server-side
// handshake for each one, from a long-lived identity loaded at Listen time.
type Listener struct {
	tcp *tcp.Listener
	cfg *stdtls.Config
}

var _ net.Listener = (*Listener)(nil)

// Listen requires both a certificate and a matching key, loads them once,
// then wraps a TCP listener on the address.
func Listen(network, address string, config *Config) (*Listener, error) {
	if config == nil {
		config = &Config{}
	}
	cfg, err := config.serverConfig()
	if err != nil {
		return nil, err
	}

	inner, err := tcp.Listen(network, address)
	if err != nil {
		return nil, err
	}

	return &Listener{tcp: inner, cfg: cfg}, nil
}

// Accept takes the next TCP connection and drives the server handshake. A
// handshake failure closes that connection and is returned as a
// per-connection error; the listener itself stays usable.
func (l *Listener) Accept() (net.Conn, error) {
	raw, err := l.tcp.AcceptTCP()
	if err != nil {
		return nil, err
	}

	session := stdtls.Server(raw, l.cfg)
	if err := session.Handshake(); err != nil {
		raw.Close()
		return nil, errors.Wrapf(ErrHandshake, "accept from %s: %v", raw.RemoteAddr(), err)
	}

	return &Conn{session: session, tcp: raw}, nil
}

// Close stops the listener. Idempotent.
func (l *Listener) Close() error { return l.tcp.Close() }

// Addr returns the bound endpoint.
func (l *Listener) Addr() net.Addr { return l.tcp.Addr() }
