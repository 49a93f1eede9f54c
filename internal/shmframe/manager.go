package shmframe

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// maxDimension bounds segment dimensions to what a GetImage request
// can address.
const maxDimension = 65535

// OpenError is the tagged failure from OpenSegment. Retryable means
// the server rejected this specific window/size combination and the
// caller may retry with other parameters; otherwise shared-memory
// capture is unusable for the rest of the session and the manager has
// already disabled itself.
type OpenError struct {
	Retryable bool
	Err       error
}

func (e *OpenError) Error() string {
	if e.Retryable {
		return "shm open (retryable): " + e.Err.Error()
	}
	return "shm open (session disabled): " + e.Err.Error()
}

func (e *OpenError) Unwrap() error { return e.Err }

// wire abstracts the MIT-SHM protocol requests the manager issues, so
// the capture and lifecycle logic tests against a counted fake.
type wire interface {
	newSeg() (shm.Seg, error)
	attach(seg shm.Seg, shmid uint32, readOnly bool) error
	detach(seg shm.Seg) error
	fetch(seg shm.Seg, drawable xproto.Drawable, width, height uint16) error
}

// Manager negotiates the shared-memory channel and owns segment
// lifecycles. One manager per connection; the connection may be a
// second, dedicated one so blocking extension calls stay off the
// event connection.
type Manager struct {
	d    *xconn.Display
	wire wire
	kern kernelSHM
	pal  paletteWire
	comp compositeWire
	log  *slog.Logger

	mu         sync.Mutex
	negotiated bool
	supported  bool
	disabled   bool

	compositeOnce sync.Once
	compositeErr  error
}

// NewManager builds a manager on d. With disabled set (diagnostics
// toggle), Negotiate reports false without touching the server.
func NewManager(d *xconn.Display, log *slog.Logger, disabled bool) *Manager {
	m := newManager(xgbWire{d}, sysvSHM{}, xgbPalette{d}, xgbComposite{d}, log, disabled)
	m.d = d
	return m
}

func newManager(w wire, k kernelSHM, p paletteWire, c compositeWire, log *slog.Logger, disabled bool) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{wire: w, kern: k, pal: p, comp: c, log: log, disabled: disabled}
}

// Negotiate queries MIT-SHM support once per connection and caches the
// answer; later calls short-circuit.
func (m *Manager) Negotiate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.negotiateLocked()
}

func (m *Manager) negotiateLocked() bool {
	if m.disabled {
		return false
	}
	if m.negotiated {
		return m.supported
	}
	m.negotiated = true
	if m.d == nil {
		// Test managers without a display negotiate trivially.
		m.supported = true
		return true
	}
	if err := shm.Init(m.d.Conn()); err != nil {
		m.log.Info("MIT-SHM unavailable", "error", err)
		m.supported = false
		return false
	}
	reply, err := shm.QueryVersion(m.d.Conn()).Reply()
	if err != nil {
		m.log.Info("MIT-SHM version query failed", "error", err)
		m.supported = false
		return false
	}
	m.log.Debug("MIT-SHM negotiated",
		"major", reply.MajorVersion, "minor", reply.MinorVersion,
		"shared_pixmaps", reply.SharedPixmaps)
	m.supported = true
	return true
}

// disableSession turns shared-memory capture off for the remainder of
// the session after a global failure.
func (m *Manager) disableSession(reason error) {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
	m.log.Warn("shared-memory capture disabled for this session", "reason", reason)
}

// Enabled reports whether the shared-memory path is still usable.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled
}

// OpenSegment allocates a kernel segment sized for width x height at
// depth, attaches it locally and asks the server to attach it too. One
// extra row is reserved so stride-aligned reads near the final
// scanline never run past the allocation.
func (m *Manager) OpenSegment(window xproto.Window, width, height, depth int) (*Segment, *OpenError) {
	if m.d != nil {
		m.d.MustBeOpen()
	}
	if !m.Negotiate() {
		return nil, &OpenError{Err: errors.New("shared-memory capture unavailable")}
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, &OpenError{
			Retryable: true,
			Err:       errors.Errorf("unusable segment size %dx%d", width, height),
		}
	}

	stride := strideFor(width, depth)
	size := stride * (height + 1)

	shmid, buf, err := m.kern.alloc(size)
	if err != nil {
		// Kernel exhaustion is not specific to this window; fall back
		// to the non-shared path for good.
		m.disableSession(err)
		return nil, &OpenError{Err: err}
	}
	seg, err := m.wire.newSeg()
	if err != nil {
		m.cleanupLocal(shmid, buf)
		m.disableSession(err)
		return nil, &OpenError{Err: err}
	}
	if err := m.wire.attach(seg, uint32(shmid), false); err != nil {
		m.cleanupLocal(shmid, buf)
		if retryableWireError(err) {
			return nil, &OpenError{Retryable: true, Err: err}
		}
		// The server cannot map our segments at all (remote display,
		// policy); no size or window will fare better.
		m.disableSession(err)
		return nil, &OpenError{Err: err}
	}

	m.log.Debug("shm segment open",
		"window", window, "shmid", shmid,
		"size", size, "geometry", []int{width, height}, "depth", depth)
	return &Segment{
		mgr:    m,
		window: window,
		shmid:  shmid,
		seg:    seg,
		buf:    buf,
		width:  width,
		height: height,
		depth:  depth,
		stride: stride,
	}, nil
}

func (m *Manager) cleanupLocal(shmid int, buf []byte) {
	if err := m.kern.detach(buf); err != nil {
		m.log.Warn("local shm detach failed", "shmid", shmid, "error", err)
	}
	if err := m.kern.remove(shmid); err != nil {
		m.log.Warn("shm remove failed", "shmid", shmid, "error", err)
	}
}

// Capture returns a view over drawable's pixels clamped to the
// segment's bounds. Negative origins shrink the request; a rectangle
// fully outside the segment returns nil. At most one pixel fetch is
// issued per discard cycle: repeated captures without an intervening
// Discard reuse the already-fetched pixels. The returned image holds a
// reference on the segment until released.
func (m *Manager) Capture(s *Segment, drawable xproto.Drawable, x, y, w, h int) (*Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != segOpen {
		panic("shmframe: capture on closed segment")
	}

	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > s.width {
		w = s.width - x
	}
	if y+h > s.height {
		h = s.height - y
	}
	if w <= 0 || h <= 0 || x >= s.width || y >= s.height {
		return nil, nil
	}

	if !s.fetched {
		// The request/reply round trip doubles as the synchronization
		// barrier: the segment may be read only after the server has
		// acknowledged the copy.
		err := m.wire.fetch(s.seg, drawable, uint16(s.width), uint16(s.height))
		if err != nil {
			return nil, errors.Wrapf(err, "shm fetch %dx%d from %#x", s.width, s.height, drawable)
		}
		s.fetched = true
	}

	s.refs++
	return &Image{
		seg:    s,
		X:      x,
		Y:      y,
		Width:  w,
		Height: h,
		Depth:  s.depth,
		Stride: s.stride,
		Format: pixelFormat(s.depth),
	}, nil
}

// Discard marks the segment's cached pixels stale so the next Capture
// fetches fresh ones. Outstanding images are unaffected.
func (m *Manager) Discard(s *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == segClosed {
		panic("shmframe: discard on torn-down segment")
	}
	s.fetched = false
}

// Close requests teardown. With references outstanding the teardown is
// deferred to the last release. Closing twice is a programmer error.
func (m *Manager) Close(s *Segment) {
	s.mu.Lock()
	if s.state != segOpen {
		s.mu.Unlock()
		panic("shmframe: segment closed twice")
	}
	s.state = segCloseRequested
	now := s.refs == 0
	if now {
		s.state = segClosed
	}
	s.mu.Unlock()
	if now {
		s.teardown()
	}
}

// retryableWireError reports whether a server-side attach rejection is
// specific to the parameters used (worth retrying with others) rather
// than a session-wide inability to share memory.
func retryableWireError(err error) bool {
	xerr, ok := err.(xgb.Error)
	if !ok {
		return false
	}
	switch xconn.FromWire(xerr).Name {
	case "BadValue", "BadMatch", "BadLength":
		return true
	}
	return false
}

func pixelFormat(depth int) string {
	switch {
	case depth <= 8:
		return "P8"
	case depth <= 16:
		return "RGB565"
	case depth == 30:
		return "R210"
	case depth == 32:
		return "BGRA"
	default:
		return "BGRX"
	}
}
