// Package shmframe captures window pixel contents through a SysV
// shared-memory channel negotiated with the X server, instead of
// copying pixels across the protocol socket. Segments are owned
// jointly with the server: the server attaches before first use and
// this process detaches and marks for removal on teardown, in that
// order, or the kernel segment outlives the process.
package shmframe

import (
	"sync"

	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
)

// kernelSHM abstracts the SysV syscalls so lifecycle logic tests
// without kernel segments.
type kernelSHM interface {
	alloc(size int) (id int, buf []byte, err error)
	detach(buf []byte) error
	remove(id int) error
}

// segState is the explicit two-bit lifecycle state: "open with zero
// refs" and "close requested with zero refs" are different states, not
// a combination of independent flags.
type segState int

const (
	segOpen segState = iota
	segCloseRequested
	segClosed
)

// Segment is one shared-memory region mapped into both the server and
// this process. Dimensions are fixed at creation; resizing means
// destroying and recreating the segment.
type Segment struct {
	mgr    *Manager
	window xproto.Window
	shmid  int
	seg    shm.Seg
	buf    []byte

	width  int
	height int
	depth  int
	stride int

	mu      sync.Mutex
	state   segState
	refs    int
	fetched bool
}

func (s *Segment) Width() int  { return s.width }
func (s *Segment) Height() int { return s.height }
func (s *Segment) Depth() int  { return s.depth }
func (s *Segment) Stride() int { return s.stride }

// Window returns the window the segment was opened for.
func (s *Segment) Window() xproto.Window { return s.window }

// refcount for tests and diagnostics.
func (s *Segment) outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// teardown releases both sides of the segment. Order is strict:
// server detach first, then the local mapping, then mark-for-removal.
// Called with the state already moved to segClosed and refs at zero.
func (s *Segment) teardown() {
	m := s.mgr
	if err := m.wire.detach(s.seg); err != nil {
		m.log.Warn("server shm detach failed", "shmid", s.shmid, "error", err)
	}
	if err := m.kern.detach(s.buf); err != nil {
		m.log.Warn("local shm detach failed", "shmid", s.shmid, "error", err)
	}
	if err := m.kern.remove(s.shmid); err != nil {
		m.log.Warn("shm remove failed", "shmid", s.shmid, "error", err)
	}
	s.buf = nil
}

func bytesPerPixel(depth int) int {
	switch {
	case depth <= 8:
		return 1
	case depth <= 16:
		return 2
	default:
		return 4
	}
}

// strideFor pads rows to the 32-bit scanline unit the server uses for
// ZPixmap data.
func strideFor(width, depth int) int {
	return (width*bytesPerPixel(depth) + 3) &^ 3
}
