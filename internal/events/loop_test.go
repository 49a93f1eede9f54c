package events

import (
	"io"
	"log/slog"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

type fakeCtx struct {
	root xproto.Window
	open bool
	cell xconn.ErrorCell
}

func (c *fakeCtx) IsOpen() bool             { return c.open }
func (c *fakeCtx) Root() xproto.Window      { return c.root }
func (c *fakeCtx) Errors() *xconn.ErrorCell { return &c.cell }

type fakeEvent struct {
	raw []byte
}

func (e fakeEvent) Bytes() []byte  { return e.raw }
func (e fakeEvent) String() string { return "fakeEvent" }

type fakeError struct {
	seq uint16
	bad uint32
}

func (e fakeError) SequenceId() uint16 { return e.seq }
func (e fakeError) BadId() uint32      { return e.bad }
func (e fakeError) Error() string      { return "BadFake" }

type pollResult struct {
	ev  xgb.Event
	err xgb.Error
}

// fakeSource replays a fixed sequence of poll results.
type fakeSource struct {
	queue []pollResult
}

func (s *fakeSource) PollForEvent() (xgb.Event, xgb.Error) {
	if len(s.queue) == 0 {
		return nil, nil
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r.ev, r.err
}

func eventsOf(evs ...xgb.Event) []pollResult {
	out := make([]pollResult, len(evs))
	for i, ev := range evs {
		out[i] = pollResult{ev: ev}
	}
	return out
}

type recordingRouter struct {
	codes   []int
	records []Record
	signals []string
	panicOn int
}

func (r *recordingRouter) Route(code int, rec Record, signal, parentSignal string) {
	if r.panicOn != 0 && code == r.panicOn {
		panic("router blew up")
	}
	r.codes = append(r.codes, code)
	r.records = append(r.records, rec)
	r.signals = append(r.signals, signal)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(src Source, reg *Registry, router Router) (*Loop, *fakeCtx) {
	ctx := &fakeCtx{root: 0x10, open: true}
	return newLoop(ctx, src, reg, router, quietLogger()), ctx
}

func TestDrainRoutesRegisteredEvents(t *testing.T) {
	reg := NewRegistry()
	reg.Register(70, "Fake", "fake-event", "child-fake-event",
		func(ctx Context, ev xgb.Event) (Record, error) {
			return Record{Window: 7, DeliveredTo: 7, Fields: map[string]any{}}, nil
		})
	src := &fakeSource{queue: eventsOf(
		fakeEvent{raw: []byte{70, 0, 0, 0}},
		fakeEvent{raw: []byte{70, 0, 0, 0}},
	)}
	router := &recordingRouter{}
	loop, _ := newTestLoop(src, reg, router)

	if n := loop.Drain(); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}
	if len(router.codes) != 2 {
		t.Fatalf("expected 2 routed events, got %d", len(router.codes))
	}
	if router.signals[0] != "fake-event" {
		t.Fatalf("unexpected signal %q", router.signals[0])
	}
}

func TestDrainSkipsUnregisteredCode(t *testing.T) {
	reg := NewRegistry()
	src := &fakeSource{queue: eventsOf(fakeEvent{raw: []byte{99, 0, 0, 0}})}
	router := &recordingRouter{}
	loop, _ := newTestLoop(src, reg, router)

	if n := loop.Drain(); n != 1 {
		t.Fatalf("Drain = %d, want 1", n)
	}
	if len(router.codes) != 0 {
		t.Fatalf("expected nothing routed, got %d", len(router.codes))
	}
}

func TestDrainSurvivesFailingParser(t *testing.T) {
	reg := NewRegistry()
	reg.Register(70, "Broken", "broken-event", "child-broken-event",
		func(ctx Context, ev xgb.Event) (Record, error) {
			return Record{}, errors.New("short payload")
		})
	reg.Register(71, "Panicky", "panicky-event", "child-panicky-event",
		func(ctx Context, ev xgb.Event) (Record, error) {
			panic("parser bug")
		})
	reg.Register(72, "Good", "good-event", "child-good-event",
		func(ctx Context, ev xgb.Event) (Record, error) {
			return Record{Window: 1, Fields: map[string]any{}}, nil
		})
	src := &fakeSource{queue: eventsOf(
		fakeEvent{raw: []byte{70, 0, 0, 0}},
		fakeEvent{raw: []byte{71, 0, 0, 0}},
		fakeEvent{raw: []byte{72, 0, 0, 0}},
	)}
	router := &recordingRouter{}
	loop, _ := newTestLoop(src, reg, router)

	if n := loop.Drain(); n != 3 {
		t.Fatalf("Drain = %d, want 3", n)
	}
	if len(router.codes) != 1 || router.codes[0] != 72 {
		t.Fatalf("expected only the good event routed, got %v", router.codes)
	}

	// The loop stays usable afterwards.
	src.queue = eventsOf(fakeEvent{raw: []byte{72, 0, 0, 0}})
	if n := loop.Drain(); n != 1 {
		t.Fatalf("Drain after failures = %d, want 1", n)
	}
}

func TestDrainSwallowsRouterPanic(t *testing.T) {
	reg := NewRegistry()
	parse := func(ctx Context, ev xgb.Event) (Record, error) {
		return Record{Window: 1, Fields: map[string]any{}}, nil
	}
	reg.Register(70, "Boom", "boom-event", "child-boom-event", parse)
	reg.Register(72, "Good", "good-event", "child-good-event", parse)
	src := &fakeSource{queue: eventsOf(
		fakeEvent{raw: []byte{70, 0, 0, 0}},
		fakeEvent{raw: []byte{72, 0, 0, 0}},
	)}
	router := &recordingRouter{panicOn: 70}
	loop, _ := newTestLoop(src, reg, router)

	if n := loop.Drain(); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}
	if len(router.codes) != 1 || router.codes[0] != 72 {
		t.Fatalf("expected the event after the panic to still route, got %v", router.codes)
	}
}

func TestDrainSkipsEmptyRecords(t *testing.T) {
	reg := NewRegistry()
	reg.Register(70, "Silent", "silent-event", "child-silent-event",
		func(ctx Context, ev xgb.Event) (Record, error) {
			return Record{}, nil
		})
	src := &fakeSource{queue: eventsOf(fakeEvent{raw: []byte{70, 0, 0, 0}})}
	router := &recordingRouter{}
	loop, _ := newTestLoop(src, reg, router)

	if n := loop.Drain(); n != 1 {
		t.Fatalf("Drain = %d, want 1", n)
	}
	if len(router.codes) != 0 {
		t.Fatalf("empty record must not route, got %v", router.codes)
	}
}

func TestDrainRecordsProtocolErrorsConsumeOnce(t *testing.T) {
	reg := NewRegistry()
	src := &fakeSource{queue: []pollResult{{err: fakeError{seq: 42, bad: 0xdead}}}}
	router := &recordingRouter{}
	loop, ctx := newTestLoop(src, reg, router)

	loop.Drain()

	err := ctx.Errors().Take()
	if err == nil {
		t.Fatal("expected an error in the cell")
	}
	if err.Sequence != 42 || err.BadValue != 0xdead {
		t.Fatalf("unexpected error contents: %+v", err)
	}
	if again := ctx.Errors().Take(); again != nil {
		t.Fatalf("second read must be empty, got %+v", again)
	}
}

func TestDrainOnClosedConnection(t *testing.T) {
	reg := NewRegistry()
	src := &fakeSource{queue: eventsOf(fakeEvent{raw: []byte{70, 0, 0, 0}})}
	loop, ctx := newTestLoop(src, reg, &recordingRouter{})
	ctx.open = false

	if n := loop.Drain(); n != 0 {
		t.Fatalf("Drain on closed connection = %d, want 0", n)
	}
}
