package shmframe

// Image is a bounded, read-only view over a segment's pixel data. Any
// number of images may reference one segment concurrently; each must
// be released exactly once. The backing memory stays valid until the
// owning segment tears down, which cannot happen while an image is
// outstanding.
type Image struct {
	seg *Segment

	X      int
	Y      int
	Width  int
	Height int
	Depth  int
	Stride int // full segment row stride, not the view's row width
	Format string

	released bool
}

// Pixels returns a zero-copy slice of the backing store covering the
// view: it starts at the view's first pixel and ends after its last
// row's last pixel. Rows are Stride bytes apart.
func (img *Image) Pixels() []byte {
	s := img.seg
	s.mu.Lock()
	defer s.mu.Unlock()
	if img.released || s.state == segClosed {
		panic("shmframe: pixels read after release")
	}
	bpp := bytesPerPixel(img.Depth)
	start := img.Y*img.Stride + img.X*bpp
	end := (img.Y+img.Height-1)*img.Stride + (img.X+img.Width)*bpp
	return s.buf[start:end]
}

// Restride copies the view's rows into a freshly allocated buffer with
// the requested row stride, dropping the segment padding. This is the
// copy-on-demand path for consumers that need packed pixels.
func (img *Image) Restride(stride int) []byte {
	if stride <= 0 {
		stride = img.Width * bytesPerPixel(img.Depth)
	}
	rowBytes := img.Width * bytesPerPixel(img.Depth)
	if rowBytes > stride {
		rowBytes = stride
	}
	src := img.Pixels()
	out := make([]byte, stride*img.Height)
	for row := 0; row < img.Height; row++ {
		copy(out[row*stride:row*stride+rowBytes], src[row*img.Stride:])
	}
	return out
}

// Release drops the image's reference. If the segment's closure has
// been requested and this was the last reference, the segment tears
// down here. Releasing twice, or after teardown, panics.
func (img *Image) Release() {
	s := img.seg
	s.mu.Lock()
	if img.released {
		s.mu.Unlock()
		panic("shmframe: image released twice")
	}
	if s.state == segClosed {
		s.mu.Unlock()
		panic("shmframe: release after segment teardown")
	}
	img.released = true
	s.refs--
	teardown := s.state == segCloseRequested && s.refs == 0
	if teardown {
		s.state = segClosed
	}
	s.mu.Unlock()
	if teardown {
		s.teardown()
	}
}
