package shmframe

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// paletteSize is the largest indexed palette a depth-8 visual carries.
const paletteSize = 256

// RGB is one colormap entry, 16 bits per channel as the server
// reports them.
type RGB struct {
	Red   uint16
	Green uint16
	Blue  uint16
}

// paletteWire is the protocol surface palette reads need.
type paletteWire interface {
	windowVisual(win xproto.Window) (xproto.Visualid, xproto.Colormap, error)
	visualEntries(visual xproto.Visualid) (int, error)
	colors(cmap xproto.Colormap, n int) ([]RGB, error)
}

// ReadPalette returns the active palette of an indexed-color window:
// always paletteSize entries, slots beyond the colormap's declared
// size zero-filled. Returns nil for direct-color depths.
func (m *Manager) ReadPalette(s *Segment) ([]RGB, error) {
	if s.depth > 8 {
		return nil, nil
	}
	visual, cmap, err := m.pal.windowVisual(s.window)
	if err != nil {
		return nil, errors.Wrapf(err, "window attributes for %#x", s.window)
	}
	n, err := m.pal.visualEntries(visual)
	if err != nil {
		return nil, err
	}
	if n > paletteSize {
		n = paletteSize
	}
	cols, err := m.pal.colors(cmap, n)
	if err != nil {
		return nil, errors.Wrapf(err, "query %d colors", n)
	}
	out := make([]RGB, paletteSize)
	copy(out, cols)
	return out, nil
}

type xgbPalette struct {
	d *xconn.Display
}

func (p xgbPalette) windowVisual(win xproto.Window) (xproto.Visualid, xproto.Colormap, error) {
	reply, err := xproto.GetWindowAttributes(p.d.Conn(), win).Reply()
	if err != nil {
		return 0, 0, err
	}
	return reply.Visual, reply.Colormap, nil
}

// visualEntries scans the screen's allowed depths for the visual's
// definition. Exactly one match must exist; zero or several means the
// server's setup data cannot be trusted for palette reads.
func (p xgbPalette) visualEntries(visual xproto.Visualid) (int, error) {
	entries := -1
	matches := 0
	for _, depth := range p.d.Screen().AllowedDepths {
		for _, vis := range depth.Visuals {
			if vis.VisualId == visual {
				matches++
				entries = int(vis.ColormapEntries)
			}
		}
	}
	if matches != 1 {
		return 0, errors.Errorf("visual %#x has %d definitions, want exactly 1", visual, matches)
	}
	return entries, nil
}

func (p xgbPalette) colors(cmap xproto.Colormap, n int) ([]RGB, error) {
	pixels := make([]uint32, n)
	for i := range pixels {
		pixels[i] = uint32(i)
	}
	reply, err := xproto.QueryColors(p.d.Conn(), cmap, pixels).Reply()
	if err != nil {
		return nil, err
	}
	out := make([]RGB, len(reply.Colors))
	for i, c := range reply.Colors {
		out[i] = RGB{Red: c.Red, Green: c.Green, Blue: c.Blue}
	}
	return out, nil
}
