package shmframe

import (
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// xgbWire is the real protocol backend.
type xgbWire struct {
	d *xconn.Display
}

func (w xgbWire) newSeg() (shm.Seg, error) {
	return shm.NewSegId(w.d.Conn())
}

func (w xgbWire) attach(seg shm.Seg, shmid uint32, readOnly bool) error {
	return shm.AttachChecked(w.d.Conn(), seg, shmid, readOnly).Check()
}

func (w xgbWire) detach(seg shm.Seg) error {
	if !w.d.IsOpen() {
		// The server side died with the connection; only the kernel
		// side still needs cleanup.
		return nil
	}
	return shm.DetachChecked(w.d.Conn(), seg).Check()
}

// fetch copies the drawable's pixels into the segment, starting at its
// origin. The reply is awaited so the caller may read the segment.
func (w xgbWire) fetch(seg shm.Seg, drawable xproto.Drawable, width, height uint16) error {
	_, err := shm.GetImage(w.d.Conn(), drawable, 0, 0, width, height,
		0xffffffff, xproto.ImageFormatZPixmap, seg, 0).Reply()
	return err
}
