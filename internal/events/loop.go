package events

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// Source yields the next queued wire event without blocking, or
// (nil, nil) when none is pending. *xgb.Conn satisfies it.
type Source interface {
	PollForEvent() (xgb.Event, xgb.Error)
}

const (
	stateIdle = iota
	stateDraining
	stateDispatching
)

// Loop drains pending wire events and routes the parsed records. It is
// cooperative: Drain never waits on the connection, so it can be driven
// by a timer or an fd-readiness notification and returns promptly.
//
// Protocol errors surfacing on the event stream are deposited into the
// connection's error cell instead of being raised; a caller inspects
// them through a trap span.
type Loop struct {
	ctx    Context
	src    Source
	reg    *Registry
	router Router
	log    *slog.Logger
	state  int
}

// NewLoop wires a loop to a display connection.
func NewLoop(d *xconn.Display, reg *Registry, router Router, log *slog.Logger) *Loop {
	return newLoop(d, d.Conn(), reg, router, log)
}

func newLoop(ctx Context, src Source, reg *Registry, router Router, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{ctx: ctx, src: src, reg: reg, router: router, log: log}
}

// Drain processes every currently pending event and returns how many
// were read. A malformed event, an unregistered code or a misbehaving
// router never aborts the loop; each is logged and skipped. On a
// closed or poisoned connection Drain returns 0 immediately.
func (l *Loop) Drain() int {
	if !l.ctx.IsOpen() {
		return 0
	}
	l.state = stateDraining
	defer func() { l.state = stateIdle }()

	n := 0
	for {
		ev, xerr := l.src.PollForEvent()
		if ev == nil && xerr == nil {
			return n
		}
		if xerr != nil {
			e := xconn.FromWire(xerr)
			if !l.ctx.Errors().Put(e) {
				l.log.Debug("protocol error dropped, cell occupied", "error", e.String())
			} else {
				l.log.Debug("protocol error recorded", "error", e.String())
			}
			continue
		}
		n++
		l.dispatch(ev)
	}
}

func (l *Loop) dispatch(ev xgb.Event) {
	l.state = stateDispatching
	defer func() { l.state = stateDraining }()

	code := l.reg.Classify(ev.Bytes())
	entry, ok := l.reg.Lookup(code)
	if !ok {
		l.log.Debug("unregistered event code, skipping", "code", code)
		return
	}
	rec, err := l.parse(entry, ev)
	if err != nil {
		l.log.Warn("event parse failed, skipping",
			"code", code, "event", entry.Short, "error", err)
		return
	}
	if rec.IsEmpty() {
		return
	}
	l.route(entry, rec)
}

// parse runs the entry's parser, converting a panic into an error so
// one bad payload cannot take the loop down.
func (l *Loop) parse(entry Entry, ev xgb.Event) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = Record{}
			err = &parsePanic{value: r}
		}
	}()
	return entry.Parse(l.ctx, ev)
}

func (l *Loop) route(entry Entry, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("router panicked, event dropped",
				"event", entry.Short, "window", rec.Window, "panic", r)
		}
	}()
	l.router.Route(entry.Code, rec, entry.Signal, entry.ParentSignal)
}

type parsePanic struct {
	value any
}

func (p *parsePanic) Error() string {
	return fmt.Sprintf("parser panicked: %v", p.value)
}
