// Package xkb implements the minimal XKEYBOARD wire subset this module
// needs: the version handshake, bell event selection on the core
// keyboard, and BellNotify decoding. The protocol library does not
// generate an xkb package, so the requests are encoded by hand in the
// same shape its generated extensions use.
//
// XKB multiplexes all of its notifications over a single event code;
// the sub-type lives in the second byte of the wire struct.
package xkb

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"
)

// ExtName is the name the server knows the extension by.
const ExtName = "XKEYBOARD"

// BellNotify is the xkbType sub-code for bell events.
const BellNotify = 8

const (
	opUseExtension = 0
	opSelectEvents = 1

	useCoreKbd     = 0x0100
	bellNotifyMask = 1 << 8
)

var (
	mu        sync.Mutex
	baseEvent = -1
)

// Init queries the extension, performs the UseExtension handshake and
// installs the event decoder at the server-assigned base code. Like
// the generated extension packages, the decode table is process-wide;
// calling Init again is a no-op beyond re-querying.
func Init(c *xgb.Conn) error {
	reply, err := xproto.QueryExtension(c, uint16(len(ExtName)), ExtName).Reply()
	if err != nil {
		return errors.Wrap(err, "query XKEYBOARD")
	}
	if !reply.Present {
		return errors.New("XKEYBOARD extension not present")
	}
	c.ExtLock.Lock()
	c.Extensions[ExtName] = reply.MajorOpcode
	c.ExtLock.Unlock()

	supported, err := useExtension(c, 1, 0)
	if err != nil {
		return errors.Wrap(err, "XKEYBOARD version handshake")
	}
	if !supported {
		return errors.New("server rejected XKEYBOARD 1.0")
	}

	mu.Lock()
	baseEvent = int(reply.FirstEvent)
	mu.Unlock()
	xgb.NewEventFuncs[int(reply.FirstEvent)] = newEvent
	return nil
}

// EventBase returns the server-assigned event code, or -1 before Init
// has succeeded.
func EventBase() int {
	mu.Lock()
	defer mu.Unlock()
	return baseEvent
}

// useExtension issues the mandatory version handshake (opcode 0).
func useExtension(c *xgb.Conn, major, minor uint16) (bool, error) {
	buf := make([]byte, 8)
	c.ExtLock.RLock()
	buf[0] = c.Extensions[ExtName]
	c.ExtLock.RUnlock()
	buf[1] = opUseExtension
	xgb.Put16(buf[2:], 2) // length in 4-byte units
	xgb.Put16(buf[4:], major)
	xgb.Put16(buf[6:], minor)

	cookie := c.NewCookie(true, true)
	c.NewRequest(buf, cookie)
	reply, err := cookie.Reply()
	if err != nil {
		return false, err
	}
	if len(reply) < 2 {
		return false, errors.New("short UseExtension reply")
	}
	return reply[1] != 0, nil
}

// SelectBellEvents asks for BellNotify on the core keyboard (opcode 1).
// With checked set, the request is verified synchronously.
func SelectBellEvents(c *xgb.Conn, checked bool) error {
	buf := make([]byte, 16)
	c.ExtLock.RLock()
	buf[0] = c.Extensions[ExtName]
	c.ExtLock.RUnlock()
	buf[1] = opSelectEvents
	xgb.Put16(buf[2:], 4)
	xgb.Put16(buf[4:], useCoreKbd)     // deviceSpec
	xgb.Put16(buf[6:], bellNotifyMask) // affectWhich
	xgb.Put16(buf[8:], 0)              // clear
	xgb.Put16(buf[10:], bellNotifyMask) // selectAll: no per-mask detail block follows
	xgb.Put16(buf[12:], 0)             // affectMap
	xgb.Put16(buf[14:], 0)             // map

	cookie := c.NewCookie(checked, false)
	c.NewRequest(buf, cookie)
	if checked {
		return cookie.Check()
	}
	return nil
}

// newEvent decodes the shared XKB event code by sub-type.
func newEvent(buf []byte) xgb.Event {
	if len(buf) >= 2 && buf[1] == BellNotify {
		return NewBellNotifyEvent(buf)
	}
	e := UnhandledNotifyEvent{raw: buf}
	if len(buf) >= 4 {
		e.XkbType = buf[1]
		e.Sequence = xgb.Get16(buf[2:])
	}
	return e
}

// BellNotifyEvent is the decoded bell notification.
type BellNotifyEvent struct {
	Sequence  uint16
	Time      xproto.Timestamp
	DeviceID  byte
	BellClass byte
	BellID    byte
	Percent   byte
	Pitch     uint16
	Duration  uint16
	Name      xproto.Atom
	Window    xproto.Window
	EventOnly bool

	raw []byte
}

// NewBellNotifyEvent decodes a 32-byte wire buffer.
func NewBellNotifyEvent(buf []byte) BellNotifyEvent {
	return BellNotifyEvent{
		Sequence:  xgb.Get16(buf[2:]),
		Time:      xproto.Timestamp(xgb.Get32(buf[4:])),
		DeviceID:  buf[8],
		BellClass: buf[9],
		BellID:    buf[10],
		Percent:   buf[11],
		Pitch:     xgb.Get16(buf[12:]),
		Duration:  xgb.Get16(buf[14:]),
		Name:      xproto.Atom(xgb.Get32(buf[16:])),
		Window:    xproto.Window(xgb.Get32(buf[20:])),
		EventOnly: buf[24] != 0,
		raw:       buf,
	}
}

func (e BellNotifyEvent) Bytes() []byte { return e.raw }

func (e BellNotifyEvent) String() string {
	return fmt.Sprintf("BellNotify {Window: %#x, Device: %d, Percent: %d, Pitch: %d, Duration: %d}",
		e.Window, e.DeviceID, e.Percent, e.Pitch, e.Duration)
}

// UnhandledNotifyEvent covers XKB sub-types this module recognizes but
// does not route.
type UnhandledNotifyEvent struct {
	XkbType  byte
	Sequence uint16

	raw []byte
}

func (e UnhandledNotifyEvent) Bytes() []byte { return e.raw }

func (e UnhandledNotifyEvent) String() string {
	return fmt.Sprintf("XkbNotify {XkbType: %d}", e.XkbType)
}
