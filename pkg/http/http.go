// Package http is a minimal HTTP/1.1 layer over the transport packages:
// framing, routing and dispatch on the server side, Get/Post on the client
// side. One request per connection, no keep-alive, no chunked encoding;
// connection close delimits bodies on both sides.
package http

import "strings"

// Common status codes.
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// StatusText returns the canonical reason phrase for the status codes this
// layer emits, or "Unknown".
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusCreated:
		return "Created"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

// Header maps lower-cased field names to values. Keys are compared
// case-insensitively and the last write wins.
type Header map[string]string

// Get returns the value for key, or "".
func (h Header) Get(key string) string { return h[strings.ToLower(key)] }

// Set records the value for key, overwriting any previous value.
func (h Header) Set(key, value string) { h[strings.ToLower(key)] = value }

// Request is one parsed incoming message (server side) or one outgoing
// message (client side). Handlers read it; they do not mutate it.
type Request struct {
	Method     string
	URL        string
	Proto      string
	Header     Header
	Body       []byte
	RemoteAddr string
}

// Response is the client's view of one HTTP exchange.
type Response struct {
	Proto      string
	StatusCode int
	Status     string
	Header     Header
	Body       []byte
}

// ResponseWriter assembles one response on one connection. Header is
// mutable until the first Write or WriteHeader flushes the status line;
// at most one status line is ever emitted.
type ResponseWriter interface {
	Header() Header
	Write(b []byte) (int, error)
	WriteHeader(statusCode int)
}

// A Handler responds to an HTTP request.
type Handler interface {
	ServeHTTP(w ResponseWriter, r *Request)
}

// HandlerFunc is a function that satisfies Handler.
type HandlerFunc func(ResponseWriter, *Request)

// ServeHTTP calls the function that underpins HandlerFunc.
func (f HandlerFunc) ServeHTTP(w ResponseWriter, r *Request) { f(w, r) }
