package spoilertwin

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RequestLogEntry captures one request seen by the twin.
type RequestLogEntry struct {
	Method        string
	Path          string
	Authorization string
	StatusCode    int
}

// RequestLog is a thread-safe ring buffer of recent requests.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log holding at most maxSize entries.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, len(rl.entries))
	copy(out, rl.entries)
	return out
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// Fault replaces the response of one operation.
type Fault struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// FaultRegistry maps operation names (login, create, edit, list, delete) to
// injected faults.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]Fault
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]Fault)}
}

// Set injects a fault for operation.
func (fr *FaultRegistry) Set(operation string, f Fault) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults[operation] = f
}

// Remove clears the fault for operation and reports whether one existed.
func (fr *FaultRegistry) Remove(operation string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[operation]
	delete(fr.faults, operation)
	return existed
}

// Check returns the fault for operation, or nil.
func (fr *FaultRegistry) Check(operation string) *Fault {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	if f, ok := fr.faults[operation]; ok {
		return &f
	}
	return nil
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]Fault)
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// logRequests records every request into the twin's request log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.Requests.Add(RequestLogEntry{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			StatusCode:    rec.statusCode,
		})
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.statusCode).
			Dur("duration", time.Since(start)).
			Msg("twin request")
	})
}

// faultInjection short-circuits operation with an injected fault, if any.
func (s *Server) faultInjection(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fault := s.Faults.Check(operation); fault != nil {
				if fault.Delay > 0 {
					select {
					case <-time.After(fault.Delay):
					case <-r.Context().Done():
						return
					}
				}
				if fault.StatusCode > 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(fault.StatusCode)
					if fault.Body != "" {
						fmt.Fprint(w, fault.Body)
					} else {
						fmt.Fprintf(w, `{"msg":"injected fault","status":%d}`, fault.StatusCode)
					}
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
