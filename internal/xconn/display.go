package xconn

import (
	"sync/atomic"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/pkg/errors"
)

// ErrDisplayClosed is returned by operations attempted after the
// connection has been closed or poisoned by an I/O failure.
var ErrDisplayClosed = errors.New("display connection is closed")

// Display is the shared connection context handed to every component
// that talks to the X server. It owns the protocol error cell and the
// poison flag; it does not arbitrate access beyond that (callers
// serialize protocol use themselves).
type Display struct {
	conn   *xgb.Conn
	xu     *xgbutil.XUtil
	root   xproto.Window
	screen *xproto.ScreenInfo

	// Synchronous forces checked requests throughout the core so
	// protocol errors surface at the call site (debug aid).
	Synchronous bool

	closed   atomic.Bool
	poisoned atomic.Bool

	cell ErrorCell
}

// Open dials the X server named by display ("" means $DISPLAY).
func Open(display string, synchronous bool) (*Display, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrap(err, "open display")
	}
	d, err := Wrap(conn, synchronous)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Wrap builds a Display around an already-open connection. The caller
// keeps ownership of closing it unless Close is used.
func Wrap(conn *xgb.Conn, synchronous bool) (*Display, error) {
	xu, err := xgbutil.NewConnXgb(conn)
	if err != nil {
		return nil, errors.Wrap(err, "wrap display connection")
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	return &Display{
		conn:        conn,
		xu:          xu,
		root:        screen.Root,
		screen:      screen,
		Synchronous: synchronous,
	}, nil
}

// Conn returns the raw protocol handle.
func (d *Display) Conn() *xgb.Conn { return d.conn }

// XUtil returns the xgbutil context for helper packages (ewmh, xprop).
func (d *Display) XUtil() *xgbutil.XUtil { return d.xu }

// Root returns the default screen's root window.
func (d *Display) Root() xproto.Window { return d.root }

// Screen returns the default screen's setup info.
func (d *Display) Screen() *xproto.ScreenInfo { return d.screen }

// Errors returns the connection's protocol error cell.
func (d *Display) Errors() *ErrorCell { return &d.cell }

// IsOpen reports whether the connection is still usable.
func (d *Display) IsOpen() bool {
	return !d.closed.Load() && !d.poisoned.Load()
}

// Poison marks the connection unusable after a fatal I/O failure.
// Every subsequent operation fails fast instead of blocking.
func (d *Display) Poison() {
	d.poisoned.Store(true)
}

// Poisoned reports whether a fatal I/O failure has been observed.
func (d *Display) Poisoned() bool { return d.poisoned.Load() }

// MustBeOpen panics when the connection is closed. Components use it
// to turn "operate on a closed display" into a loud programmer error
// rather than a hang.
func (d *Display) MustBeOpen() {
	if !d.IsOpen() {
		panic("xconn: operation on closed display")
	}
}

// Flush is a no-op: the underlying transport writes each request as it
// is made. Kept so callers written against buffered transports read
// naturally.
func (d *Display) Flush() {}

// Sync performs one request/reply round trip, guaranteeing every
// previously issued request has been processed by the server. With
// discard set, events queued during the round trip are dropped (their
// errors still land in the error cell).
func (d *Display) Sync(discard bool) error {
	if !d.IsOpen() {
		return ErrDisplayClosed
	}
	if _, err := xproto.GetInputFocus(d.conn).Reply(); err != nil {
		if xerr, ok := err.(xgb.Error); ok {
			d.cell.Put(FromWire(xerr))
			return nil
		}
		d.Poison()
		return errors.Wrap(err, "sync round trip")
	}
	if discard {
		for {
			ev, xerr := d.conn.PollForEvent()
			if ev == nil && xerr == nil {
				break
			}
			if xerr != nil {
				d.cell.Put(FromWire(xerr))
			}
		}
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (d *Display) Close() {
	if d.closed.CompareAndSwap(false, true) {
		d.conn.Close()
	}
}
