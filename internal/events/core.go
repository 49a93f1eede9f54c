package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"
)

// SetupCore registers the core window-lifecycle parsers a forwarding
// server routes to per-window subscribers. No capability query needed;
// these codes are fixed by the core protocol.
func SetupCore(reg *Registry) {
	reg.Register(xproto.DestroyNotify,
		"DestroyNotify", "destroy-event", "child-destroy-event", parseDestroyNotify)
	reg.Register(xproto.UnmapNotify,
		"UnmapNotify", "unmap-event", "child-unmap-event", parseUnmapNotify)
	reg.Register(xproto.MapNotify,
		"MapNotify", "map-event", "child-map-event", parseMapNotify)
	reg.Register(xproto.ConfigureNotify,
		"ConfigureNotify", "configure-event", "child-configure-event", parseConfigureNotify)
	reg.Register(xproto.PropertyNotify,
		"PropertyNotify", "property-event", "child-property-event", parsePropertyNotify)
}

func parseDestroyNotify(ctx Context, ev xgb.Event) (Record, error) {
	e, ok := ev.(xproto.DestroyNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	return Record{
		Window:      e.Window,
		DeliveredTo: e.Event,
		Fields:      map[string]any{},
	}, nil
}

func parseUnmapNotify(ctx Context, ev xgb.Event) (Record, error) {
	e, ok := ev.(xproto.UnmapNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	return Record{
		Window:      e.Window,
		DeliveredTo: e.Event,
		Fields: map[string]any{
			"from_configure": e.FromConfigure,
		},
	}, nil
}

func parseMapNotify(ctx Context, ev xgb.Event) (Record, error) {
	e, ok := ev.(xproto.MapNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	return Record{
		Window:      e.Window,
		DeliveredTo: e.Event,
		Fields: map[string]any{
			"override_redirect": e.OverrideRedirect,
		},
	}, nil
}

func parseConfigureNotify(ctx Context, ev xgb.Event) (Record, error) {
	e, ok := ev.(xproto.ConfigureNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	return Record{
		Window:      e.Window,
		DeliveredTo: e.Event,
		Fields: map[string]any{
			"x":                 int(e.X),
			"y":                 int(e.Y),
			"width":             int(e.Width),
			"height":            int(e.Height),
			"border_width":      int(e.BorderWidth),
			"above_sibling":     uint32(e.AboveSibling),
			"override_redirect": e.OverrideRedirect,
		},
	}, nil
}

func parsePropertyNotify(ctx Context, ev xgb.Event) (Record, error) {
	e, ok := ev.(xproto.PropertyNotifyEvent)
	if !ok {
		return Record{}, errors.Errorf("unexpected event type %T", ev)
	}
	return Record{
		Window:      e.Window,
		DeliveredTo: e.Window,
		Fields: map[string]any{
			"atom":    uint32(e.Atom),
			"deleted": e.State == xproto.PropertyDelete,
			"time":    uint32(e.Time),
		},
	}, nil
}
