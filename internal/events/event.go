// Package events classifies raw X wire events, parses them into typed
// records and routes them to per-window subscribers. Classification
// (reading the first-byte tag) is kept fully separate from
// interpretation (reading type-specific fields): the tag's offset is
// uniform across core and extension events, the payload layout is not.
package events

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// Record is one parsed event. Window is the routing key; DeliveredTo
// is the window the server addressed the event to (these differ for
// events reported on a parent). An empty record (no fields) means the
// event was recognized but carries nothing routable.
type Record struct {
	Window      xproto.Window
	DeliveredTo xproto.Window
	Fields      map[string]any
}

// IsEmpty reports whether the record carries no routable payload.
func (r Record) IsEmpty() bool { return r.Fields == nil }

// Context is the slice of the connection context parsers and the loop
// need. *xconn.Display satisfies it.
type Context interface {
	IsOpen() bool
	Root() xproto.Window
	Errors() *xconn.ErrorCell
}

// ParseFunc interprets one wire layout. It may return an empty Record
// ("recognized, not routable"); an error means the payload did not
// parse and the event is dropped by the loop.
type ParseFunc func(ctx Context, ev xgb.Event) (Record, error)

// Router receives parsed events. Implementations must not block the
// loop; panics are caught and logged, never propagated.
type Router interface {
	Route(code int, rec Record, signal, parentSignal string)
}
