// Package observabilitytest provides an in-memory logger for tests.
package observabilitytest

import (
	"sync"

	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
)

// Entry is a single captured log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []observability.Field
}

// Recorder is an in-memory Logger used by tests to assert on diagnostics.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return new(Recorder)
}

// Debug records a debug entry.
func (r *Recorder) Debug(msg string, fields ...observability.Field) { r.add("DEBUG", msg, fields) }

// Info records an informational entry.
func (r *Recorder) Info(msg string, fields ...observability.Field) { r.add("INFO", msg, fields) }

// Error records an error entry.
func (r *Recorder) Error(msg string, fields ...observability.Field) { r.add("ERROR", msg, fields) }

func (r *Recorder) add(level, msg string, fields []observability.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: append([]observability.Field(nil), fields...)})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns the number of entries recorded at level.
func (r *Recorder) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
