package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

var damageExt = extension{name: "DAMAGE", init: initDamage}

func initDamage(d *xconn.Display) (int, error) {
	c := d.Conn()
	if err := damage.Init(c); err != nil {
		return 0, errors.Wrap(err, "DAMAGE extension")
	}
	reply, err := xproto.QueryExtension(c, uint16(len("DAMAGE")), "DAMAGE").Reply()
	if err != nil {
		return 0, errors.Wrap(err, "query DAMAGE")
	}
	if !reply.Present {
		return 0, errors.New("DAMAGE extension not present")
	}
	if _, err := damage.QueryVersion(c, 1, 1).Reply(); err != nil {
		return 0, errors.Wrap(err, "DAMAGE version handshake")
	}
	return int(reply.FirstEvent), nil
}

// HasDamage reports cached DAMAGE support.
func HasDamage(d *xconn.Display) bool { return damageExt.has(d) }

// SetupDamage registers the DamageNotify parser. Safe to call more
// than once; the registration silently overwrites.
func SetupDamage(d *xconn.Display, reg *Registry) error {
	base, err := damageExt.ensure(d)
	if err != nil {
		return err
	}
	reg.Register(base+damage.Notify,
		"DamageNotify", "damage-event", "child-damage-event", parseDamageNotify)
	return nil
}

// WatchDamage starts damage tracking on win at NonEmpty report level
// and returns the damage handle carried by subsequent notify events.
func WatchDamage(d *xconn.Display, win xproto.Window) (damage.Damage, error) {
	if _, err := damageExt.ensure(d); err != nil {
		return 0, err
	}
	did, err := damage.NewDamageId(d.Conn())
	if err != nil {
		return 0, errors.Wrap(err, "allocate damage id")
	}
	if d.Synchronous {
		err = damage.CreateChecked(d.Conn(), did, xproto.Drawable(win),
			byte(damage.ReportLevelNonEmpty)).Check()
		if err != nil {
			return 0, errors.Wrapf(err, "damage create on %#x", win)
		}
	} else {
		damage.Create(d.Conn(), did, xproto.Drawable(win),
			byte(damage.ReportLevelNonEmpty))
	}
	return did, nil
}

// UnwatchDamage stops tracking a handle returned by WatchDamage.
func UnwatchDamage(d *xconn.Display, did damage.Damage) {
	damage.Destroy(d.Conn(), did)
}

func parseDamageNotify(ctx Context, ev xgb.Event) (Record, error) {
	dn, ok := ev.(damage.NotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	win := xproto.Window(dn.Drawable)
	return Record{
		Window:      win,
		DeliveredTo: win,
		Fields: map[string]any{
			"damage": uint32(dn.Damage),
			"x":      int(dn.Area.X),
			"y":      int(dn.Area.Y),
			"width":  int(dn.Area.Width),
			"height": int(dn.Area.Height),
			"level":  int(dn.Level),
			"time":   uint32(dn.Timestamp),
		},
	}, nil
}
