package shmframe

import (
	"bytes"
	"testing"
)

// fillSegment writes a row-major byte pattern into the backing store so
// view tests can check exact offsets.
func fillSegment(seg *Segment) {
	for i := range seg.buf {
		seg.buf[i] = byte(i % 251)
	}
}

func TestPixelsCoversExactlyTheView(t *testing.T) {
	m, _, _, _, _ := newTestManager()
	seg := openTestSegment(t, m, 8, 4, 24) // bpp 4, stride 32
	defer m.Close(seg)
	fillSegment(seg)

	img, err := m.Capture(seg, 0x400, 2, 1, 3, 2)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	defer img.Release()

	px := img.Pixels()
	// First pixel of row 1, column 2; last pixel of row 2, column 4.
	start := 1*32 + 2*4
	end := 2*32 + 5*4
	if len(px) != end-start {
		t.Fatalf("Pixels length = %d, want %d", len(px), end-start)
	}
	if !bytes.Equal(px, seg.buf[start:end]) {
		t.Fatal("Pixels does not alias the expected backing range")
	}

	// Zero-copy: writes through the view are visible in the segment.
	px[0] = 0xee
	if seg.buf[start] != 0xee {
		t.Fatal("Pixels returned a copy, want a view")
	}
}

func TestRestridePacksRows(t *testing.T) {
	m, _, _, _, _ := newTestManager()
	seg := openTestSegment(t, m, 8, 4, 24)
	defer m.Close(seg)
	fillSegment(seg)

	img, err := m.Capture(seg, 0x400, 1, 0, 4, 3)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	defer img.Release()

	packed := img.Restride(0)
	rowBytes := 4 * 4
	if len(packed) != rowBytes*3 {
		t.Fatalf("packed length = %d, want %d", len(packed), rowBytes*3)
	}
	for row := 0; row < 3; row++ {
		segRow := seg.buf[row*32+1*4 : row*32+1*4+rowBytes]
		if !bytes.Equal(packed[row*rowBytes:(row+1)*rowBytes], segRow) {
			t.Fatalf("row %d does not match the segment data", row)
		}
	}
}

func TestRestrideWiderStrideZeroPads(t *testing.T) {
	m, _, _, _, _ := newTestManager()
	seg := openTestSegment(t, m, 8, 4, 24)
	defer m.Close(seg)
	fillSegment(seg)

	img, err := m.Capture(seg, 0x400, 0, 0, 2, 2)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	defer img.Release()

	out := img.Restride(16)
	if len(out) != 32 {
		t.Fatalf("length = %d, want 32", len(out))
	}
	for row := 0; row < 2; row++ {
		for i := 8; i < 16; i++ {
			if out[row*16+i] != 0 {
				t.Fatalf("row %d padding byte %d not zero", row, i)
			}
		}
	}
}

func TestPixelsPanicsAfterRelease(t *testing.T) {
	m, _, _, _, _ := newTestManager()
	seg := openTestSegment(t, m, 8, 4, 24)
	defer m.Close(seg)

	img, _ := m.Capture(seg, 0x400, 0, 0, 4, 4)
	img.Release()
	mustPanic(t, "pixels after release", func() { img.Pixels() })
}
