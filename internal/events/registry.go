package events

import "sync"

// Entry describes one registered event type: the human-readable name
// pair used for logging and routing, and the parser that knows the
// wire layout for the code.
type Entry struct {
	Code         int
	Short        string
	Signal       string
	ParentSignal string
	Parse        ParseFunc
}

// Registry maps an event-type code (core code, or extension base plus
// sub-code) to its Entry. Extension bases are only known after a
// runtime capability query, so registration happens late and must be
// idempotent: re-registering a code silently overwrites.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Entry)}
}

// Register installs or replaces the entry for code.
func (r *Registry) Register(code int, short, signal, parentSignal string, parse ParseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[code] = Entry{
		Code:         code,
		Short:        short,
		Signal:       signal,
		ParentSignal: parentSignal,
		Parse:        parse,
	}
}

// Lookup returns the entry for code, if any.
func (r *Registry) Lookup(code int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[code]
	return e, ok
}

// Classify extracts the numeric event-type code from a raw wire event
// without touching its payload. The high bit marks events delivered
// with SendEvent and is not part of the code. Returns -1 for a buffer
// too short to carry a tag.
func (r *Registry) Classify(raw []byte) int {
	if len(raw) == 0 {
		return -1
	}
	return int(raw[0] & 0x7f)
}

// Len returns how many codes are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
