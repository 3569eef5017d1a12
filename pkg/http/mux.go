package http

import "strings"

// ServeMux routes requests by URL pattern: an exact match wins, otherwise
// the longest registered pattern that is a string prefix of the URL.
// Registration is not safe concurrently with dispatch; populate the mux
// before the server starts accepting.
type ServeMux struct {
	handlers map[string]HandlerFunc
}

// NewServeMux allocates an empty mux.
func NewServeMux() *ServeMux {
	return &ServeMux{handlers: make(map[string]HandlerFunc)}
}

// HandleFunc registers handler for pattern, overwriting any previous
// registration.
func (m *ServeMux) HandleFunc(pattern string, handler HandlerFunc) {
	m.handlers[pattern] = handler
}

// ServeHTTP dispatches r to the matching handler, or writes a 404.
func (m *ServeMux) ServeHTTP(w ResponseWriter, r *Request) {
	if h, ok := m.handlers[r.URL]; ok {
		h(w, r)
		return
	}

	var longest string
	var matched HandlerFunc
	for pattern, h := range m.handlers {
		if len(pattern) > len(longest) && strings.HasPrefix(r.URL, pattern) {
			longest = pattern
			matched = h
		}
	}

	if matched != nil {
		matched(w, r)
		return
	}

	w.WriteHeader(StatusNotFound)
	w.Write([]byte("404 page not found\n"))
}

// DefaultServeMux is the mux used by the package-level HandleFunc and by
// servers with a nil Handler.
var DefaultServeMux = NewServeMux()

// HandleFunc registers handler for pattern on DefaultServeMux.
func HandleFunc(pattern string, handler HandlerFunc) {
	DefaultServeMux.HandleFunc(pattern, handler)
}
