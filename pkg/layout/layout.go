// Package layout computes on-screen page geometry. Given the container's
// content-box width and a page's natural size it produces display dimensions,
// a display scale, and a raster scale. It is a pure calculator: callers own
// writing the result back into page state and invalidating stale bitmaps.
package layout

import (
	"math"

	"lectern/pkg/doc"
)

// Policy selects how pages are scaled to the container.
type Policy int

const (
	// FitWidth scales every page to a fixed fraction of the container
	// width, without an upper bound. Used when the viewport owns only
	// vertical scrolling and pages should always fill it.
	FitWidth Policy = iota
	// FitCap scales pages toward MaxWidth but never beyond MaxScale,
	// so oversized source pages do not upscale indefinitely.
	FitCap
)

func (p Policy) String() string {
	switch p {
	case FitWidth:
		return "fit-width"
	case FitCap:
		return "fit-cap"
	}
	return "unknown"
}

// Config fixes a scaling policy and its parameters. The zero value scales
// pages to 90% of the container at raster resolution equal to display
// resolution. The policy choice is made once, at construction of whatever
// owns the Config; it is not a runtime toggle.
type Config struct {
	Policy Policy

	// WidthRatio is the fraction of the container width a FitWidth page
	// fills. Defaults to 0.9.
	WidthRatio float64

	// MaxWidth and MaxScale bound FitCap pages: scale is the smaller of
	// MaxWidth/naturalWidth and MaxScale. Default 1000 px and 1.5.
	MaxWidth float64
	MaxScale float64

	// Zoom multiplies the policy scale. Defaults to 1.
	Zoom float64

	// Oversample multiplies the display scale into the raster scale, so
	// backing buffers carry more pixels than their on-screen size for
	// sharper output on dense displays. Defaults to 1 (identity).
	Oversample float64
}

// WithDefaults returns cfg with unset fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.WidthRatio <= 0 {
		c.WidthRatio = 0.9
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = 1000
	}
	if c.MaxScale <= 0 {
		c.MaxScale = 1.5
	}
	if c.Zoom <= 0 {
		c.Zoom = 1
	}
	if c.Oversample <= 0 {
		c.Oversample = 1
	}
	return c
}

// Metrics is the computed geometry for one page.
type Metrics struct {
	// Width and Height are the on-screen size in pixels, rounded to the
	// nearest integer to avoid sub-pixel blur.
	Width  int
	Height int
	// Scale converts natural size to on-screen size.
	Scale float64
	// RenderScale converts natural size to raster buffer resolution.
	// Equal to Scale unless the Config oversamples.
	RenderScale float64
}

// RasterSize returns the pixel dimensions of the backing buffer that holds
// the page bitmap at these metrics. Equal to Width×Height when RenderScale
// matches Scale.
func (m Metrics) RasterSize() (w, h int) {
	if m.Scale <= 0 {
		return m.Width, m.Height
	}
	over := m.RenderScale / m.Scale
	return int(math.Round(float64(m.Width) * over)), int(math.Round(float64(m.Height) * over))
}

// Compute derives display metrics for a page of the given natural size
// inside a container of the given width. It reports ok=false when the
// container has not been measured yet (width zero, negative, or not finite)
// or the natural size is degenerate; callers must keep the previous metrics
// in that case, so pages never collapse to zero size before the host is
// laid out.
func Compute(containerWidth float64, natural doc.Size, cfg Config) (Metrics, bool) {
	cfg = cfg.WithDefaults()
	if !(containerWidth > 0) || math.IsInf(containerWidth, 1) {
		return Metrics{}, false
	}
	if natural.Width <= 0 || natural.Height <= 0 {
		return Metrics{}, false
	}

	var scale float64
	switch cfg.Policy {
	case FitCap:
		scale = math.Min(cfg.MaxWidth/natural.Width, cfg.MaxScale)
	default:
		scale = containerWidth * cfg.WidthRatio / natural.Width
	}
	scale *= cfg.Zoom

	return Metrics{
		Width:       int(math.Round(natural.Width * scale)),
		Height:      int(math.Round(natural.Height * scale)),
		Scale:       scale,
		RenderScale: scale * cfg.Oversample,
	}, true
}
