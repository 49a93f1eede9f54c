package shmframe

import (
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// compositeWire abstracts the COMPOSITE requests so the redirection
// lifecycle tests without a server.
type compositeWire interface {
	init() error
	redirect(win xproto.Window) error
	unredirect(win xproto.Window)
	namePixmap(win xproto.Window) (xproto.Pixmap, error)
	freePixmap(pid xproto.Pixmap)
}

func (m *Manager) ensureComposite() error {
	m.compositeOnce.Do(func() {
		m.compositeErr = m.comp.init()
	})
	return m.compositeErr
}

// RedirectWindow redirects win's rendering off-screen so its pixmap
// stays populated while obscured or unmapped. Automatic update mode:
// the server keeps the pixmap current itself.
func (m *Manager) RedirectWindow(win xproto.Window) error {
	if err := m.ensureComposite(); err != nil {
		return errors.Wrap(err, "COMPOSITE extension")
	}
	if err := m.comp.redirect(win); err != nil {
		return errors.Wrapf(err, "redirect window %#x", win)
	}
	return nil
}

// UnredirectWindow undoes RedirectWindow.
func (m *Manager) UnredirectWindow(win xproto.Window) {
	if m.ensureComposite() != nil {
		return
	}
	m.comp.unredirect(win)
}

// WindowPixmap names the redirected window's backing pixmap. Captures
// against the pixmap read consistent pixels even while the window is
// being repainted. The caller frees the pixmap id when done.
func (m *Manager) WindowPixmap(win xproto.Window) (xproto.Pixmap, error) {
	if err := m.ensureComposite(); err != nil {
		return 0, errors.Wrap(err, "COMPOSITE extension")
	}
	pid, err := m.comp.namePixmap(win)
	if err != nil {
		return 0, errors.Wrapf(err, "name window pixmap for %#x", win)
	}
	return pid, nil
}

// FreePixmap releases a pixmap returned by WindowPixmap.
func (m *Manager) FreePixmap(pid xproto.Pixmap) {
	m.comp.freePixmap(pid)
}

// xgbComposite is the real protocol backend.
type xgbComposite struct {
	d *xconn.Display
}

func (x xgbComposite) init() error {
	return composite.Init(x.d.Conn())
}

func (x xgbComposite) redirect(win xproto.Window) error {
	return composite.RedirectWindowChecked(x.d.Conn(), win,
		composite.RedirectAutomatic).Check()
}

func (x xgbComposite) unredirect(win xproto.Window) {
	composite.UnredirectWindow(x.d.Conn(), win, composite.RedirectAutomatic)
}

func (x xgbComposite) namePixmap(win xproto.Window) (xproto.Pixmap, error) {
	pid, err := xproto.NewPixmapId(x.d.Conn())
	if err != nil {
		return 0, err
	}
	if err := composite.NameWindowPixmapChecked(x.d.Conn(), win, pid).Check(); err != nil {
		return 0, err
	}
	return pid, nil
}

func (x xgbComposite) freePixmap(pid xproto.Pixmap) {
	xproto.FreePixmap(x.d.Conn(), pid)
}
