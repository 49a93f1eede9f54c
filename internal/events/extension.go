package events

import (
	"sync"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// extension caches one capability query and the extension's event base
// offset. The protocol library keeps its decode tables process-wide,
// so the cache is process-wide too; the first ensure wins and later
// calls are no-ops, which makes per-extension setup safe to attempt
// multiple times.
type extension struct {
	name string
	init func(d *xconn.Display) (base int, err error)

	mu   sync.Mutex
	done bool
	base int
	err  error
}

// ensure runs the capability query once and returns the cached event
// base offset, or the cached failure.
func (e *extension) ensure(d *xconn.Display) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.base, e.err
	}
	e.base, e.err = e.init(d)
	e.done = true
	return e.base, e.err
}

func (e *extension) has(d *xconn.Display) bool {
	_, err := e.ensure(d)
	return err == nil
}
