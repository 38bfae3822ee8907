package viewport

import (
	"lectern/pkg/doc"
)

// scheduleLocked starts a rasterization for p unless a guard holds: no
// open session, bitmap already current, render already in flight, no
// surface attached, or no page handle. Redundant triggers from resize
// and visibility therefore collapse into at most one running render per
// page, and calling it again is always harmless. Callers hold c.mu.
func (c *Controller) scheduleLocked(p *pageState) {
	if c.session == nil || p.surface == nil || p.page == nil {
		return
	}
	if p.state == RenderDone || p.state == RenderPending {
		return
	}
	if w, h := p.display.RasterSize(); w <= 0 || h <= 0 {
		// Container not measured yet; the layout pass that gives the
		// page real dimensions re-triggers visibility.
		return
	}
	p.state = RenderPending
	go c.rasterize(p, c.gen)
}

// rasterize runs in its own goroutine, at most one per page. It sizes
// the surface's backing buffer to the raster resolution, has the engine
// draw the page into it, and commits the result only if the page's
// dimensions and surface did not move underneath it; otherwise the
// bitmap is discarded and a corrected render is queued immediately.
func (c *Controller) rasterize(p *pageState, gen uint64) {
	log := Logger()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	id := c.session.id
	page := p.page
	surf := p.surface
	epoch := p.epoch
	w, h := p.display.RasterSize()
	c.mu.Unlock()

	if surf == nil {
		// Detached between scheduling and start.
		c.mu.Lock()
		if gen == c.gen && p.state == RenderPending {
			p.state = RenderIdle
		}
		c.mu.Unlock()
		return
	}

	surf.Resize(w, h)
	err := page.Rasterize(c.ctx, surf.Buffer())

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if p.epoch != epoch || p.surface != surf {
		// Dimensions or surface changed mid-flight: the bitmap is
		// stale. Queue the corrected render now instead of waiting for
		// the next scroll event.
		p.state = RenderIdle
		c.scheduleLocked(p)
		c.mu.Unlock()
		log.Debug("stale render requeued", "session", id, "page", p.number)
		return
	}
	if err != nil {
		p.state = RenderFailed
		p.err = &doc.RasterizeError{Page: p.number, Err: err}
		c.mu.Unlock()
		log.Warn("rasterize failed", "session", id, "page", p.number, "error", err)
		return
	}
	p.state = RenderDone
	p.err = nil
	c.mu.Unlock()

	surf.Present()
	if c.cfg.OnRendered != nil {
		c.cfg.OnRendered(p.number)
	}
	log.Debug("page rendered", "session", id, "page", p.number, "width", w, "height", h)
}
