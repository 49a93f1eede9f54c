package xconn

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestErrorCellFirstErrorWins(t *testing.T) {
	var cell ErrorCell

	if !cell.Put(XError{Sequence: 1, Name: "BadWindow"}) {
		t.Fatal("first put into an empty cell must store")
	}
	if cell.Put(XError{Sequence: 2, Name: "BadMatch"}) {
		t.Fatal("second put must be dropped")
	}
	if cell.Put(XError{Sequence: 3, Name: "BadValue"}) {
		t.Fatal("third put must be dropped")
	}

	err := cell.Take()
	if err == nil || err.Sequence != 1 || err.Name != "BadWindow" {
		t.Fatalf("Take = %+v, want the first error", err)
	}
}

func TestErrorCellTakeConsumes(t *testing.T) {
	var cell ErrorCell
	cell.Put(XError{Sequence: 7, Name: "BadDrawable"})

	if cell.Take() == nil {
		t.Fatal("first take must return the error")
	}
	if again := cell.Take(); again != nil {
		t.Fatalf("second take = %+v, want nil", again)
	}

	// The cell is reusable after being drained.
	if !cell.Put(XError{Sequence: 8, Name: "BadAccess"}) {
		t.Fatal("put after take must store")
	}
}

func TestErrorCellClearReportsDropped(t *testing.T) {
	var cell ErrorCell
	cell.Put(XError{Sequence: 1, Name: "BadWindow"})
	cell.Put(XError{Sequence: 2, Name: "BadMatch"})
	cell.Put(XError{Sequence: 3, Name: "BadValue"})

	if dropped := cell.Clear(); dropped != 2 {
		t.Fatalf("Clear = %d dropped, want 2", dropped)
	}
	if cell.Take() != nil {
		t.Fatal("cell must be empty after clear")
	}
	if dropped := cell.Clear(); dropped != 0 {
		t.Fatalf("Clear on empty cell = %d dropped, want 0", dropped)
	}
}

func TestFromWireUnpacksGeneratedErrors(t *testing.T) {
	wire := xproto.WindowError{
		Sequence:    42,
		BadValue:    0x600123,
		MajorOpcode: 18, // ChangeProperty
		MinorOpcode: 0,
		NiceName:    "Window",
	}
	got := FromWire(wire)
	if got.Sequence != 42 || got.BadValue != 0x600123 {
		t.Fatalf("unexpected fields: %+v", got)
	}
	if got.MajorOpcode != 18 || got.Name != "Window" {
		t.Fatalf("unexpected fields: %+v", got)
	}
}
