package viewport

import (
	"image/draw"

	"lectern/pkg/doc"
	"lectern/pkg/layout"
)

// RenderState tracks where a page sits in its rasterization lifecycle.
// The zero value is RenderIdle.
type RenderState int

const (
	// RenderIdle means no up-to-date bitmap exists and no rasterization
	// is in flight. Pages start here and return here whenever their
	// display dimensions change.
	RenderIdle RenderState = iota

	// RenderPending means a rasterization is in flight. A second trigger
	// for the same page while pending is a guaranteed no-op.
	RenderPending

	// RenderDone means the attached surface holds a bitmap matching the
	// page's current display dimensions.
	RenderDone

	// RenderFailed means the last rasterization attempt failed. The page
	// stays blank until the next qualifying trigger retries it.
	RenderFailed
)

func (s RenderState) String() string {
	switch s {
	case RenderIdle:
		return "idle"
	case RenderPending:
		return "pending"
	case RenderDone:
		return "rendered"
	case RenderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Surface is a drawable raster target owned by the host, one per page
// placeholder. The controller resizes the backing buffer to the raster
// resolution before each rasterization and calls Present when the
// buffer holds a finished bitmap.
//
// Resize and Buffer are called from render goroutines; Present must not
// call back into the Controller synchronously.
type Surface interface {
	// Resize replaces the backing buffer with one of the given pixel
	// dimensions. Previous contents are discarded.
	Resize(w, h int)

	// Buffer returns the current backing buffer.
	Buffer() draw.Image

	// Present signals that the buffer holds a complete bitmap and should
	// become visible.
	Present()
}

// PageLayout is a snapshot of one page's computed geometry, in document
// coordinates. OffsetY is the distance from the top of the page stack
// to the top of this page.
type PageLayout struct {
	Number  int
	Width   int
	Height  int
	OffsetY float64
}

// pageState is the controller's per-page record. All fields are guarded
// by the controller mutex; render goroutines work on snapshots.
type pageState struct {
	number  int
	page    doc.Page // nil when the metadata fetch failed
	natural doc.Size
	display layout.Metrics
	offsetY float64
	state   RenderState
	surface Surface
	err     error // set when state is RenderFailed

	// epoch increments whenever display dimensions change. A render
	// completing under a stale epoch discards its bitmap and requeues.
	epoch uint64
}
