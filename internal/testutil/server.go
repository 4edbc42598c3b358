// Package testutil provides an HTTP server double for transfer tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockServer serves a fixed body on every path, optionally honoring Range.
type MockServer struct {
	server *httptest.Server

	content       []byte
	rangeSupport  bool
	latency       time.Duration
	status        int
	headers       http.Header
	failAfter     int64 // close the connection after this many body bytes, -1 to disable
	chunkSize     int
	chunkInterval time.Duration

	mu     sync.Mutex
	ranges []string
}

type Option func(*MockServer)

// WithContent sets the exact body served
func WithContent(b []byte) Option {
	return func(s *MockServer) { s.content = b }
}

// WithFileSize serves a deterministic body of n bytes
func WithFileSize(n int64) Option {
	return func(s *MockServer) { s.content = Content(n) }
}

// WithRangeSupport makes the server answer Range requests with 206
func WithRangeSupport(enabled bool) Option {
	return func(s *MockServer) { s.rangeSupport = enabled }
}

// WithLatency delays every response header
func WithLatency(d time.Duration) Option {
	return func(s *MockServer) { s.latency = d }
}

// WithStatus forces a status code with an empty body
func WithStatus(code int) Option {
	return func(s *MockServer) { s.status = code }
}

// WithHeader adds a response header
func WithHeader(key, value string) Option {
	return func(s *MockServer) { s.headers.Add(key, value) }
}

// WithFailAfter aborts the connection after n body bytes
func WithFailAfter(n int64) Option {
	return func(s *MockServer) { s.failAfter = n }
}

// WithThrottle writes the body in chunks of size bytes, pausing between them
func WithThrottle(size int, interval time.Duration) Option {
	return func(s *MockServer) {
		s.chunkSize = size
		s.chunkInterval = interval
	}
}

func NewMockServer(opts ...Option) *MockServer {
	s := &MockServer{
		headers:   http.Header{},
		failAfter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Content returns the deterministic body WithFileSize serves
func Content(n int64) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i*7 + i/251) % 251)
	}
	return b
}

// URL returns a download URL on the server
func (s *MockServer) URL() string {
	return s.server.URL + "/file.bin"
}

// URLFor returns a URL with the given path on the server
func (s *MockServer) URLFor(path string) string {
	return s.server.URL + "/" + strings.TrimPrefix(path, "/")
}

func (s *MockServer) Close() {
	s.server.Close()
}

// RangeHeaders returns the Range header of every request received, "" when absent
func (s *MockServer) RangeHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Requests returns the number of requests received
func (s *MockServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranges)
}

func (s *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	rangeHeader := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rangeHeader)
	s.mu.Unlock()

	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}

	body := s.content
	status := http.StatusOK
	if s.rangeSupport && rangeHeader != "" {
		start, ok := parseOpenRange(rangeHeader)
		if !ok || start >= int64(len(s.content)) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(s.content)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body = s.content[start:]
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(s.content)-1, len(s.content)))
	}
	if s.rangeSupport {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	s.writeBody(w, body)
}

func (s *MockServer) writeBody(w http.ResponseWriter, body []byte) {
	if s.failAfter >= 0 && s.failAfter < int64(len(body)) {
		w.Write(body[:s.failAfter])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hijack and close so the client sees a truncated body
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
		return
	}

	if s.chunkSize <= 0 {
		w.Write(body)
		return
	}
	for off := 0; off < len(body); off += s.chunkSize {
		end := min(off+s.chunkSize, len(body))
		if _, err := w.Write(body[off:end]); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(s.chunkInterval)
	}
}

// parseOpenRange parses "bytes=N-" and "bytes=N-M", returning N
func parseOpenRange(h string) (int64, bool) {
	spec, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return 0, false
	}
	startStr, _, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}
	return start, true
}
