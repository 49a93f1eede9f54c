package xconn

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// XError is one protocol error reported by the server, reduced to the
// fields callers key on.
type XError struct {
	Sequence    uint16
	BadValue    uint32
	MajorOpcode byte
	MinorOpcode uint16
	Name        string
}

func (e XError) String() string {
	return fmt.Sprintf("%s (seq=%d bad=%#x major=%d minor=%d)",
		e.Name, e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode)
}

// FromWire extracts the common error fields from a wire error. The
// generated error types share one layout but not one interface, so the
// frequent ones are unpacked by type and the rest fall back to what
// the interface exposes.
func FromWire(err xgb.Error) XError {
	switch e := err.(type) {
	case xproto.ValueError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.WindowError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.DrawableError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.PixmapError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.MatchError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.AccessError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.IDChoiceError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.ColormapError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	case xproto.AtomError:
		return XError{e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode, e.NiceName}
	default:
		return XError{
			Sequence: err.SequenceId(),
			BadValue: err.BadId(),
			Name:     err.Error(),
		}
	}
}

// ErrorCell holds the first unacknowledged protocol error seen on the
// connection. Reading it clears it, so a caller can assert "no error
// since my last check". Errors arriving while one is already held are
// counted and dropped; the first one is what a trap span reports.
type ErrorCell struct {
	mu      sync.Mutex
	err     *XError
	dropped int
}

// Put stores e if the cell is empty and reports whether it was stored.
func (c *ErrorCell) Put(e XError) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		c.dropped++
		return false
	}
	stored := e
	c.err = &stored
	return true
}

// Take returns the held error and empties the cell.
func (c *ErrorCell) Take() *XError {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	c.dropped = 0
	return err
}

// Clear empties the cell and returns how many errors had been dropped
// since it was last empty.
func (c *ErrorCell) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := c.dropped
	c.err = nil
	c.dropped = 0
	return dropped
}
