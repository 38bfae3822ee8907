// Package surface provides in-memory raster targets for page bitmaps.
// An ImageSurface is double-buffered: the render scheduler draws into a
// back buffer, and Present publishes a stable copy for the host to
// display, so a half-drawn page never reaches the screen and the
// previous bitmap stays visible while a re-render is in flight.
package surface

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"

	"lectern/pkg/viewport"
)

// ImageSurface is a drawable page target backed by RGBA buffers.
// Resize and Buffer serve the render scheduler; Front serves the host.
// All methods are safe for concurrent use, though pixel writes into the
// back buffer are expected from one renderer at a time.
type ImageSurface struct {
	mu        sync.Mutex
	back      *image.RGBA
	front     *image.RGBA
	onPresent func()
}

var _ viewport.Surface = (*ImageSurface)(nil)

// NewImageSurface creates an empty surface.
func NewImageSurface() *ImageSurface {
	return &ImageSurface{}
}

// SetOnPresent registers a hook invoked after every Present, typically
// to refresh the host widget showing Front.
func (s *ImageSurface) SetOnPresent(fn func()) {
	s.mu.Lock()
	s.onPresent = fn
	s.mu.Unlock()
}

// Resize replaces the back buffer with a white one of the given pixel
// dimensions. The front image is left alone, so whatever was last
// presented stays on screen until the next Present.
func (s *ImageSurface) Resize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	buf := image.NewRGBA(image.Rect(0, 0, w, h))
	ctx := gg.NewContextForRGBA(buf)
	ctx.SetRGB(1, 1, 1)
	ctx.Clear()

	s.mu.Lock()
	s.back = buf
	s.mu.Unlock()
}

// Buffer returns the current back buffer, allocating a minimal one if
// Resize has never been called.
func (s *ImageSurface) Buffer() draw.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.back == nil {
		s.back = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return s.back
}

// Present publishes a copy of the back buffer as the new front image
// and fires the present hook.
func (s *ImageSurface) Present() {
	s.mu.Lock()
	if s.back != nil {
		front := image.NewRGBA(s.back.Bounds())
		copy(front.Pix, s.back.Pix)
		s.front = front
	}
	fn := s.onPresent
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Front returns the last presented image, or nil if nothing has been
// presented yet. The returned image is never written to again; each
// Present publishes a fresh one.
func (s *ImageSurface) Front() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front
}

// PaintPlaceholder sizes the surface to w by h and presents the
// unrendered-page tile: a white sheet with a light border and the page
// number centered in gray. Hosts call it when a page placeholder
// mounts, before the first real render lands.
func (s *ImageSurface) PaintPlaceholder(page, w, h int) {
	s.Resize(w, h)

	s.mu.Lock()
	buf := s.back
	s.mu.Unlock()

	ctx := gg.NewContextForRGBA(buf)
	b := buf.Bounds()
	ctx.SetRGB(0.80, 0.80, 0.80)
	ctx.SetLineWidth(1)
	ctx.DrawRectangle(0.5, 0.5, float64(b.Dx())-1, float64(b.Dy())-1)
	ctx.Stroke()
	ctx.SetRGB(0.55, 0.55, 0.55)
	ctx.DrawStringAnchored(fmt.Sprintf("%d", page), float64(b.Dx())/2, float64(b.Dy())/2, 0.5, 0.5)

	s.Present()
}
