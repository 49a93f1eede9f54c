package events

import (
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

func genericBuf(opcode byte, evtype uint16, window uint32) []byte {
	buf := make([]byte, 32)
	buf[0] = geGenericCode
	buf[1] = opcode
	xgb.Put16(buf[2:], 12)     // sequence
	xgb.Put32(buf[4:], 0)      // extension length words
	xgb.Put16(buf[8:], evtype)
	buf[10] = 1 // kind
	buf[11] = 2 // mode
	xgb.Put32(buf[16:], window)
	xgb.Put32(buf[20:], 99) // serial
	return buf
}

func TestGenericDecodeKeepsWireBuffer(t *testing.T) {
	buf := genericBuf(148, presentCompleteNotify, 0x5000)
	ev := newGenericEvent(buf)
	raw := ev.Bytes()
	if raw[1] != 148 {
		t.Fatalf("opcode byte = %d, want 148", raw[1])
	}
	if got := xgb.Get32(raw[16:]); got != 0x5000 {
		t.Fatalf("window bytes = %#x, want 0x5000", got)
	}
}

func TestParseGenericRoutesCompleteNotify(t *testing.T) {
	ev := newGenericEvent(genericBuf(148, presentCompleteNotify, 0x5000))
	rec, err := parseGeneric(148, ev)
	if err != nil {
		t.Fatalf("parseGeneric: %v", err)
	}
	if rec.Window != xproto.Window(0x5000) || rec.DeliveredTo != rec.Window {
		t.Fatalf("routing windows = %#x/%#x, want 0x5000", rec.Window, rec.DeliveredTo)
	}
	if rec.Fields["kind"] != 1 || rec.Fields["mode"] != 2 || rec.Fields["serial"] != uint32(99) {
		t.Fatalf("unexpected fields: %v", rec.Fields)
	}
}

func TestParseGenericIgnoresForeignEvents(t *testing.T) {
	// Another extension's generic event.
	rec, err := parseGeneric(148, newGenericEvent(genericBuf(131, presentCompleteNotify, 0x5000)))
	if err != nil {
		t.Fatalf("foreign opcode: %v", err)
	}
	if !rec.IsEmpty() {
		t.Fatalf("foreign opcode must parse empty, got %+v", rec)
	}

	// A Present sub-type this module does not route.
	rec, err = parseGeneric(148, newGenericEvent(genericBuf(148, presentIdleNotify, 0x5000)))
	if err != nil {
		t.Fatalf("idle notify: %v", err)
	}
	if !rec.IsEmpty() {
		t.Fatalf("idle notify must parse empty, got %+v", rec)
	}
}

func TestParseGenericRejectsShortBuffer(t *testing.T) {
	if _, err := parseGeneric(148, genericEvent{raw: []byte{geGenericCode, 148}}); err == nil {
		t.Fatal("a short generic event must not parse")
	}
}
