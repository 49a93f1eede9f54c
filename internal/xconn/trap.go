package xconn

// Drainer pumps pending wire events (and their errors) out of the
// connection. Implemented by the event loop; declared here so the trap
// does not depend on it.
type Drainer interface {
	Drain() int
}

// Trap is a scoped error-trapping span. Opening it clears the error
// cell; ending it reports the first protocol error observed inside the
// span, or nil.
type Trap struct {
	d     *Display
	loop  Drainer
	flush bool
	done  bool
}

// Trap opens a span. With flush set, End forces a round trip before
// inspecting the cell — protocol errors are only guaranteed visible
// once the offending request has been acknowledged by the server.
// loop may be nil when the caller drains elsewhere.
func (d *Display) Trap(loop Drainer, flush bool) *Trap {
	d.cell.Clear()
	return &Trap{d: d, loop: loop, flush: flush}
}

// End closes the span and returns the first error it captured.
func (t *Trap) End() *XError {
	if t.done {
		panic("xconn: trap span ended twice")
	}
	t.done = true
	if t.flush {
		// Best effort: a poisoned connection reports via the cell's
		// emptiness, not by blocking here.
		_ = t.d.Sync(false)
	}
	if t.loop != nil {
		t.loop.Drain()
	}
	return t.d.cell.Take()
}
