// Package atoms resolves symbolic names to server-interned atoms and
// back, caching both directions for the connection's lifetime. The
// server owns the interning table, so a cached mapping never needs to
// be re-queried.
package atoms

import (
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// Cache is the two-way atom cache. Safe for concurrent use; the
// protocol round trips underneath are serialized by the caller's
// single-connection discipline.
type Cache struct {
	wire  interner
	guard func()

	mu     sync.Mutex
	byName map[string]xproto.Atom
	byAtom map[xproto.Atom]string
}

// New builds a cache bound to d. Using it after d closes is a
// programmer error and panics.
func New(d *xconn.Display) *Cache {
	return newCache(xgbInterner{d.Conn()}, d.MustBeOpen)
}

func newCache(wire interner, guard func()) *Cache {
	return &Cache{
		wire:   wire,
		guard:  guard,
		byName: make(map[string]xproto.Atom),
		byAtom: make(map[xproto.Atom]string),
	}
}

// Intern resolves or creates one atom.
func (c *Cache) Intern(name string) (xproto.Atom, error) {
	out, err := c.InternAll([]string{name})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// InternAll resolves names in one round trip: every request is issued
// before any reply is collected. Failure is atomic — if the server
// rejects any one name, no partial result is observable and the cache
// is left untouched for the uncached names.
func (c *Cache) InternAll(names []string) ([]xproto.Atom, error) {
	c.guard()

	out := make([]xproto.Atom, len(names))
	var missing []string
	var missingIdx []int
	c.mu.Lock()
	for i, n := range names {
		if a, ok := c.byName[n]; ok {
			out[i] = a
		} else {
			missing = append(missing, n)
			missingIdx = append(missingIdx, i)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}
	interned, err := c.wire.intern(missing)
	if err != nil {
		return nil, errors.Wrap(err, "intern atoms")
	}
	c.mu.Lock()
	for j, a := range interned {
		name := missing[j]
		c.byName[name] = a
		c.byAtom[a] = name
		out[missingIdx[j]] = a
	}
	c.mu.Unlock()
	return out, nil
}

// NameOf reverse-resolves an atom. The second return is false when the
// atom does not exist on the server (or the lookup failed); a missing
// atom is an answer here, not an error.
func (c *Cache) NameOf(a xproto.Atom) (string, bool) {
	c.guard()

	c.mu.Lock()
	if n, ok := c.byAtom[a]; ok {
		c.mu.Unlock()
		return n, true
	}
	c.mu.Unlock()

	n, err := c.wire.name(a)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	c.byAtom[a] = n
	c.byName[n] = a
	c.mu.Unlock()
	return n, true
}

// interner is the wire surface the cache needs; split out so the cache
// logic tests without a server.
type interner interface {
	intern(names []string) ([]xproto.Atom, error)
	name(a xproto.Atom) (string, error)
}

type xgbInterner struct {
	c *xgb.Conn
}

func (w xgbInterner) intern(names []string) ([]xproto.Atom, error) {
	cookies := make([]xproto.InternAtomCookie, len(names))
	for i, n := range names {
		cookies[i] = xproto.InternAtom(w.c, false, uint16(len(n)), n)
	}
	out := make([]xproto.Atom, len(names))
	var firstErr error
	for i, ck := range cookies {
		reply, err := ck.Reply()
		if err != nil {
			// Keep collecting so no reply is left orphaned on the
			// connection; report the first failure for the batch.
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "intern %q", names[i])
			}
			continue
		}
		out[i] = reply.Atom
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (w xgbInterner) name(a xproto.Atom) (string, error) {
	reply, err := xproto.GetAtomName(w.c, a).Reply()
	if err != nil {
		return "", err
	}
	return reply.Name, nil
}
