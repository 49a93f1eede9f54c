package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
	"github.com/1broseidon/xmirror/internal/xkb"
)

var xkbExt = extension{name: xkb.ExtName, init: initXkb}

func initXkb(d *xconn.Display) (int, error) {
	if err := xkb.Init(d.Conn()); err != nil {
		return 0, err
	}
	return xkb.EventBase(), nil
}

// HasXkb reports cached XKEYBOARD support.
func HasXkb(d *xconn.Display) bool { return xkbExt.has(d) }

// SetupBell registers the XKB parser and selects bell notifications on
// the core keyboard. All XKB sub-types arrive on one event code; only
// bells are routable, the rest parse to empty records.
func SetupBell(d *xconn.Display, reg *Registry) error {
	base, err := xkbExt.ensure(d)
	if err != nil {
		return err
	}
	if err := xkb.SelectBellEvents(d.Conn(), d.Synchronous); err != nil {
		return errors.Wrap(err, "select bell events")
	}
	reg.Register(base, "XKBNotify", "bell-event", "child-bell-event", parseXkbNotify)
	return nil
}

func parseXkbNotify(ctx Context, ev xgb.Event) (Record, error) {
	switch bn := ev.(type) {
	case xkb.BellNotifyEvent:
		win := bn.Window
		if win == 0 {
			// Bells raised by the core keyboard carry no window; route
			// them through the root so a subscriber exists for them.
			win = ctx.Root()
		}
		return Record{
			Window:      win,
			DeliveredTo: win,
			Fields: map[string]any{
				"device":     int(bn.DeviceID),
				"percent":    int(bn.Percent),
				"pitch":      int(bn.Pitch),
				"duration":   int(bn.Duration),
				"bell_class": int(bn.BellClass),
				"bell_id":    int(bn.BellID),
				"name_atom":  uint32(bn.Name),
				"event_only": bn.EventOnly,
				"time":       uint32(bn.Time),
			},
		}, nil
	case xkb.UnhandledNotifyEvent:
		return Record{}, nil
	default:
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
}
