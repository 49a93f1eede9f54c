package events

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// geGenericCode is the core code shared by all X Generic Extension
// events; the owning extension's major opcode rides in the second byte.
const geGenericCode = 35

// Present evtype sub-codes (present.xml).
const (
	presentConfigureNotify = 0
	presentCompleteNotify  = 1
	presentIdleNotify      = 2
)

var presentExt = extension{name: "Present", init: initPresent}

func initPresent(d *xconn.Display) (int, error) {
	reply, err := xproto.QueryExtension(d.Conn(), uint16(len("Present")), "Present").Reply()
	if err != nil {
		return 0, errors.Wrap(err, "query Present")
	}
	if !reply.Present {
		return 0, errors.New("Present extension not present")
	}
	// The base returned here is the major opcode, not an event base:
	// Present delivers through the generic event code.
	return int(reply.MajorOpcode), nil
}

// HasPresent reports cached Present support.
func HasPresent(d *xconn.Display) bool { return presentExt.has(d) }

// genericEvent keeps the full 32-byte wire buffer for a code-35 event.
// The stock decode for that code preserves only the sequence number,
// discarding the extension opcode and sub-type this parser keys on.
type genericEvent struct {
	raw []byte
}

func (e genericEvent) Bytes() []byte { return e.raw }

func (e genericEvent) String() string {
	if len(e.raw) < 2 {
		return "GeGeneric {}"
	}
	return fmt.Sprintf("GeGeneric {Opcode: %d}", e.raw[1])
}

func newGenericEvent(buf []byte) xgb.Event { return genericEvent{raw: buf} }

// SetupGeneric installs a raw-preserving decode for generic (XGE)
// events and registers their classifier. Only the 32-byte prefix is
// interpreted: the transport reads fixed-size events, so select-input
// for Present is never issued here and payload words past the prefix
// are unavailable. Present completion events that do arrive are still
// classified and routed by window.
func SetupGeneric(d *xconn.Display, reg *Registry) error {
	opcode, err := presentExt.ensure(d)
	if err != nil {
		return err
	}
	// Replaces the core protocol's decode table entry for code 35,
	// which would zero the payload before the parser sees it.
	xgb.NewEventFuncs[geGenericCode] = newGenericEvent
	parse := func(ctx Context, ev xgb.Event) (Record, error) {
		return parseGeneric(byte(opcode), ev)
	}
	reg.Register(geGenericCode, "GenericEvent", "present-event", "child-present-event", parse)
	return nil
}

func parseGeneric(presentOpcode byte, ev xgb.Event) (Record, error) {
	raw := ev.Bytes()
	if len(raw) < 32 {
		return Record{}, errors.Errorf("short generic event: %d bytes", len(raw))
	}
	if raw[1] != presentOpcode {
		// Some other extension's generic event; recognized, not ours.
		return Record{}, nil
	}
	evtype := xgb.Get16(raw[8:])
	if evtype != presentCompleteNotify {
		return Record{}, nil
	}
	win := xproto.Window(xgb.Get32(raw[16:]))
	if win == 0 {
		return Record{}, nil
	}
	return Record{
		Window:      win,
		DeliveredTo: win,
		Fields: map[string]any{
			"evtype": int(evtype),
			"kind":   int(raw[10]),
			"mode":   int(raw[11]),
			"serial": xgb.Get32(raw[20:]),
		},
	}, nil
}
