package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

var xfixesExt = extension{name: "XFIXES", init: initXFixes}

func initXFixes(d *xconn.Display) (int, error) {
	c := d.Conn()
	if err := xfixes.Init(c); err != nil {
		return 0, errors.Wrap(err, "XFIXES extension")
	}
	reply, err := xproto.QueryExtension(c, uint16(len("XFIXES")), "XFIXES").Reply()
	if err != nil {
		return 0, errors.Wrap(err, "query XFIXES")
	}
	if !reply.Present {
		return 0, errors.New("XFIXES extension not present")
	}
	// The server refuses later xfixes requests until the client has
	// declared which protocol version it speaks.
	if _, err := xfixes.QueryVersion(c, 4, 0).Reply(); err != nil {
		return 0, errors.Wrap(err, "XFIXES version handshake")
	}
	return int(reply.FirstEvent), nil
}

// HasXFixes reports cached XFIXES support.
func HasXFixes(d *xconn.Display) bool { return xfixesExt.has(d) }

// SetupCursor registers the CursorNotify parser.
func SetupCursor(d *xconn.Display, reg *Registry) error {
	base, err := xfixesExt.ensure(d)
	if err != nil {
		return err
	}
	reg.Register(base+xfixes.CursorNotify,
		"CursorNotify", "cursor-event", "child-cursor-event", parseCursorNotify)
	return nil
}

// SelectCursorEvents asks the server to report cursor image changes.
// Cursor notifications are screen-wide, so win is normally the root.
func SelectCursorEvents(d *xconn.Display, win xproto.Window) error {
	if _, err := xfixesExt.ensure(d); err != nil {
		return err
	}
	if d.Synchronous {
		err := xfixes.SelectCursorInputChecked(d.Conn(), win,
			xfixes.CursorNotifyMaskDisplayCursor).Check()
		if err != nil {
			return errors.Wrapf(err, "select cursor input on %#x", win)
		}
		return nil
	}
	xfixes.SelectCursorInput(d.Conn(), win, xfixes.CursorNotifyMaskDisplayCursor)
	return nil
}

func parseCursorNotify(ctx Context, ev xgb.Event) (Record, error) {
	cn, ok := ev.(xfixes.CursorNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	win := cn.Window
	if win == 0 {
		win = ctx.Root()
	}
	return Record{
		Window:      win,
		DeliveredTo: win,
		Fields: map[string]any{
			"cursor_serial": cn.CursorSerial,
			"name_atom":     uint32(cn.Name),
			"time":          uint32(cn.Timestamp),
		},
	}, nil
}
