package http

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mohankumar-rr-17944/gocxx/pkg/net"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tcp"
	"github.com/mohankumar-rr-17944/gocxx/pkg/transport/tls"
)

// maxHeaderBytes caps request accumulation so a slow or hostile peer
// cannot grow the buffer without ever sending the header terminator.
const maxHeaderBytes = 1 << 20

// Option for Server.
type Option func(*Server) (prev Option)

// OptLogger sets the server's logger.
func OptLogger(l *zap.Logger) Option {
	return func(s *Server) (prev Option) {
		prev = OptLogger(s.log)
		s.log = l
		return
	}
}

// OptMaxConns bounds the number of concurrently handled connections.
// Zero means unbounded, one worker per accepted connection.
func OptMaxConns(n int64) Option {
	return func(s *Server) (prev Option) {
		prev = OptMaxConns(s.maxConns)
		s.maxConns = n
		return
	}
}

// Server accepts connections and serves exactly one request per
// connection. Handler dispatch shares no mutable state between workers
// except the mux's pattern table, which must be fully populated before the
// server starts accepting.
type Server struct {
	Addr    string
	Handler Handler

	log      *zap.Logger
	maxConns int64
}

// NewServer configures a server for addr. A nil handler falls back to
// DefaultServeMux at dispatch time.
func NewServer(addr string, handler Handler, opt ...Option) *Server {
	s := &Server{Addr: addr, Handler: handler, log: zap.NewNop()}

	for _, fn := range opt {
		fn(s)
	}

	return s
}

// ListenAndServe listens on the server's address and serves plain HTTP.
func (s *Server) ListenAndServe() error {
	l, err := tcp.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	return s.Serve(l)
}

// ListenAndServeTLS listens on the server's address and serves HTTPS with
// the given certificate and key.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	l, err := tls.Listen("tcp", s.Addr, &tls.Config{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		return err
	}

	return s.Serve(l)
}

// Serve runs the accept loop on l. Both the plain and the TLS entry points
// funnel through here; the per-connection logic only sees the Conn
// interface. Accept failures other than a closed listener are logged and
// retried after a backoff step; a closed listener ends Serve.
func (s *Server) Serve(l net.Listener) error {
	logger := s.log
	if logger == nil {
		logger = zap.NewNop()
	}

	var sem *semaphore.Weighted
	if s.maxConns > 0 {
		sem = semaphore.NewWeighted(s.maxConns)
	}

	b := &backoff.Backoff{
		Min:    5 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			logger.Warn("accept failed", zap.Error(err))
			time.Sleep(b.Duration())
			continue
		}
		b.Reset()

		if sem != nil {
			_ = sem.Acquire(context.Background(), 1)
		}

		go func() {
			defer conn.Close()
			if sem != nil {
				defer sem.Release(1)
			}
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic", zap.Any("panic", r))
				}
			}()

			s.handle(conn, logger)
		}()
	}
}

// handle serves one request on conn. A request that cannot be read or
// parsed closes the connection with no bytes sent; there is no reliable
// way to frame a response to a message we could not understand.
func (s *Server) handle(conn net.Conn, logger *zap.Logger) {
	raw, err := readRequestBytes(conn)
	if err != nil {
		logger.Debug("drop connection", zap.Error(err))
		return
	}

	req, err := ReadRequest(raw)
	if err != nil {
		logger.Debug("drop connection", zap.Error(err))
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	w := &responseWriter{conn: conn, header: make(Header), status: StatusOK}

	h := s.Handler
	if h == nil {
		h = DefaultServeMux
	}
	h.ServeHTTP(w, req)
}

// readRequestBytes accumulates until the header terminator is seen or the
// cap is exceeded. A peer that closes early yields whatever arrived; the
// parser decides whether that was a message.
func readRequestBytes(conn net.Conn) ([]byte, error) {
	var raw []byte
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
		}

		if bytes.Contains(raw, crlf2) {
			return raw, nil
		}
		if len(raw) > maxHeaderBytes {
			return nil, ErrRequestTooLarge
		}
		if err != nil || n == 0 {
			return raw, nil
		}
	}
}

// ReadRequest parses one request from its raw bytes. The body is whatever
// arrived after the header terminator; Content-Length is not enforced.
func ReadRequest(raw []byte) (*Request, error) {
	head, body := splitMessage(raw)
	lines := headLines(head)
	if len(lines) == 0 || lines[0] == "" {
		return nil, errors.Wrap(ErrMalformedMessage, "no request line")
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, errors.Wrap(ErrMalformedMessage, "invalid request line")
	}

	req := &Request{
		Method: fields[0],
		URL:    fields[1],
		Header: make(Header),
		Body:   body,
	}
	if len(fields) > 2 {
		req.Proto = fields[2]
	}

	parseHeaders(lines[1:], req.Header)
	return req, nil
}

// responseWriter assembles one response on one connection. The status line
// is latched: only the first WriteHeader emits it, and Write emits an
// implicit 200 if no status was set.
type responseWriter struct {
	conn        net.Conn
	header      Header
	status      int
	wroteHeader bool
}

func (w *responseWriter) Header() Header { return w.header }

func (w *responseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode

	var b strings.Builder
	b.WriteString("HTTP/1.1 " + strconv.Itoa(statusCode) + " " + StatusText(statusCode) + "\r\n")
	for k, v := range w.header {
		b.WriteString(k + ": " + v + "\r\n")
	}
	b.WriteString("\r\n")

	writeFull(w.conn, []byte(b.String()))
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(w.status)
	}

	return writeFull(w.conn, p)
}

// ListenAndServe listens on addr and serves handler over plain HTTP. A nil
// handler means DefaultServeMux.
func ListenAndServe(addr string, handler Handler) error {
	return NewServer(addr, handler).ListenAndServe()
}

// ListenAndServeTLS listens on addr and serves handler over HTTPS.
func ListenAndServeTLS(addr, certFile, keyFile string, handler Handler) error {
	return NewServer(addr, handler).ListenAndServeTLS(certFile, keyFile)
}
