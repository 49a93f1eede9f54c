package shmframe

import (
	"testing"

	"github.com/pkg/errors"
)

func TestReadPaletteDirectColorReturnsNil(t *testing.T) {
	m, _, _, p, _ := newTestManager()
	p.visualErr = errors.New("must not be queried")
	seg := openTestSegment(t, m, 64, 64, 24)
	defer m.Close(seg)

	cols, err := m.ReadPalette(seg)
	if err != nil {
		t.Fatalf("ReadPalette on direct color: %v", err)
	}
	if cols != nil {
		t.Fatalf("direct-color palette must be nil, got %d entries", len(cols))
	}
}

func TestReadPaletteZeroFillsToFullSize(t *testing.T) {
	m, _, _, p, _ := newTestManager()
	p.entries = 16
	p.cols = make([]RGB, 16)
	for i := range p.cols {
		p.cols[i] = RGB{Red: uint16(i * 0x1111), Green: 0x8000, Blue: uint16(i)}
	}
	seg := openTestSegment(t, m, 64, 64, 8)
	defer m.Close(seg)

	cols, err := m.ReadPalette(seg)
	if err != nil {
		t.Fatalf("ReadPalette: %v", err)
	}
	if len(cols) != paletteSize {
		t.Fatalf("palette length = %d, want %d", len(cols), paletteSize)
	}
	if cols[15] != p.cols[15] {
		t.Fatalf("entry 15 = %+v, want %+v", cols[15], p.cols[15])
	}
	if cols[16] != (RGB{}) || cols[paletteSize-1] != (RGB{}) {
		t.Fatal("entries past the colormap size must be zero")
	}
}

func TestReadPaletteCapsOversizedColormap(t *testing.T) {
	m, _, _, p, _ := newTestManager()
	p.entries = 1000
	p.cols = make([]RGB, paletteSize)
	seg := openTestSegment(t, m, 64, 64, 8)
	defer m.Close(seg)

	if _, err := m.ReadPalette(seg); err != nil {
		t.Fatalf("ReadPalette: %v", err)
	}
	if p.askedN != paletteSize {
		t.Fatalf("asked the server for %d colors, want %d", p.askedN, paletteSize)
	}
}

func TestReadPalettePropagatesVisualErrors(t *testing.T) {
	m, _, _, p, _ := newTestManager()
	p.entries = 16
	p.cols = make([]RGB, 16)
	p.entriesErr = errors.New("visual 0x21 has 2 definitions, want exactly 1")
	seg := openTestSegment(t, m, 64, 64, 8)
	defer m.Close(seg)

	if _, err := m.ReadPalette(seg); err == nil {
		t.Fatal("expected the visual lookup error to propagate")
	}
}
