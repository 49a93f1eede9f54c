package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

var shapeExt = extension{name: "SHAPE", init: initShape}

func initShape(d *xconn.Display) (int, error) {
	c := d.Conn()
	if err := shape.Init(c); err != nil {
		return 0, errors.Wrap(err, "SHAPE extension")
	}
	reply, err := xproto.QueryExtension(c, uint16(len("SHAPE")), "SHAPE").Reply()
	if err != nil {
		return 0, errors.Wrap(err, "query SHAPE")
	}
	if !reply.Present {
		return 0, errors.New("SHAPE extension not present")
	}
	return int(reply.FirstEvent), nil
}

// HasShape reports cached SHAPE support.
func HasShape(d *xconn.Display) bool { return shapeExt.has(d) }

// SetupShape registers the ShapeNotify parser.
func SetupShape(d *xconn.Display, reg *Registry) error {
	base, err := shapeExt.ensure(d)
	if err != nil {
		return err
	}
	reg.Register(base+shape.Notify,
		"ShapeNotify", "shape-event", "child-shape-event", parseShapeNotify)
	return nil
}

// SelectShapeEvents asks the server to report shape changes on win.
func SelectShapeEvents(d *xconn.Display, win xproto.Window) error {
	if _, err := shapeExt.ensure(d); err != nil {
		return err
	}
	if d.Synchronous {
		if err := shape.SelectInputChecked(d.Conn(), win, true).Check(); err != nil {
			return errors.Wrapf(err, "shape select input on %#x", win)
		}
		return nil
	}
	shape.SelectInput(d.Conn(), win, true)
	return nil
}

func parseShapeNotify(ctx Context, ev xgb.Event) (Record, error) {
	sn, ok := ev.(shape.NotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	win := sn.AffectedWindow
	return Record{
		Window:      win,
		DeliveredTo: win,
		Fields: map[string]any{
			"kind":   int(sn.ShapeKind),
			"x":      int(sn.ExtentsX),
			"y":      int(sn.ExtentsY),
			"width":  int(sn.ExtentsWidth),
			"height": int(sn.ExtentsHeight),
			"shaped": sn.Shaped,
			"time":   uint32(sn.ServerTime),
		},
	}, nil
}
