package xconn

import "testing"

type countingDrainer struct {
	calls int
}

func (c *countingDrainer) Drain() int {
	c.calls++
	return 0
}

func TestTrapClearsCellOnEntry(t *testing.T) {
	d := &Display{}
	d.cell.Put(XError{Sequence: 1, Name: "BadWindow"})

	trap := d.Trap(nil, false)
	if err := trap.End(); err != nil {
		t.Fatalf("an error from before the span leaked in: %+v", err)
	}
}

func TestTrapReportsErrorInsideSpan(t *testing.T) {
	d := &Display{}
	drainer := &countingDrainer{}

	trap := d.Trap(drainer, false)
	d.cell.Put(XError{Sequence: 5, Name: "BadMatch"})

	err := trap.End()
	if err == nil || err.Sequence != 5 || err.Name != "BadMatch" {
		t.Fatalf("End = %+v, want the span's error", err)
	}
	if drainer.calls != 1 {
		t.Fatalf("End drained %d times, want 1", drainer.calls)
	}

	// The span consumed the cell.
	if d.cell.Take() != nil {
		t.Fatal("cell must be empty after the span ends")
	}
}

func TestTrapEndTwicePanics(t *testing.T) {
	d := &Display{}
	trap := d.Trap(nil, false)
	trap.End()

	defer func() {
		if recover() == nil {
			t.Fatal("ending a span twice must panic")
		}
	}()
	trap.End()
}
