// Package viewport implements the lazy-rendering page stack behind the
// document view: it owns the document session, computes per-page
// geometry from the container width, watches scroll position to decide
// which pages are worth rasterizing, and keeps rendered bitmaps in step
// with resizes without ever rasterizing the same page twice
// concurrently.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lectern/pkg/doc"
	"lectern/pkg/layout"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	// PhaseIdle is the state before any document has been opened.
	PhaseIdle Phase = iota
	// PhaseLoading covers byte retrieval, engine open, and the initial
	// page-metadata pass.
	PhaseLoading
	// PhaseReady means pages are laid out and render on demand.
	PhaseReady
	// PhaseResizing is entered transiently while a container size change
	// is applied to every page.
	PhaseResizing
	// PhaseFailed means the last open attempt did not produce a document.
	// A new Open may be attempted.
	PhaseFailed
	// PhaseClosed is terminal; no page state mutates after it.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseResizing:
		return "resizing"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Loader retrieves a document's raw bytes, reporting progress as chunks
// arrive. Implementations live in pkg/resource; tests substitute stubs.
type Loader interface {
	Load(ctx context.Context, source string, progress doc.Progress) ([]byte, error)
}

// Config wires a Controller to its collaborators. Opener and Loader are
// required; everything else has working defaults. The callbacks, when
// set, are invoked without internal locks held, but possibly from
// render goroutines, so hosts marshal to their UI thread themselves.
type Config struct {
	Opener  doc.Opener
	Loader  Loader
	Layout  layout.Config
	Tracker TrackerConfig

	// Gap is the vertical spacing between consecutive pages in the
	// stack, in display pixels. Defaults to 12.
	Gap float64

	OnPhase    func(Phase)
	OnProgress func(percent float64)
	OnLayout   func(pages []PageLayout)
	OnRendered func(page int)
}

// Controller owns one document session at a time and orchestrates
// layout, visibility tracking, and render scheduling for its pages.
// All methods are safe for concurrent use.
type Controller struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	phase    Phase
	gen      uint64 // bumped by Open and Close; stale work checks it
	session  *session
	pages    []*pageState
	tracker  *Tracker
	width    float64
	height   float64
	viewTop  float64
	progress float64
}

type session struct {
	id  string
	doc doc.Document
}

// New validates the configuration and returns an idle controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Opener == nil {
		return nil, errors.New("viewport: Config.Opener is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("viewport: Config.Loader is required")
	}
	cfg.Layout = cfg.Layout.WithDefaults()
	if cfg.Gap == 0 {
		cfg.Gap = 12
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		tracker: NewTracker(cfg.Tracker),
	}, nil
}

// Open retrieves the document at source, opens it with the engine, and
// builds the page list with a sequential metadata pass in page order.
// It blocks until the document is ready or the open has failed, so
// hosts usually run it in a goroutine. Opening over an existing session
// closes the previous document first. If a newer Open supersedes this
// one while it is still loading, the superseded call returns nil
// without touching controller state.
func (c *Controller) Open(ctx context.Context, source string) error {
	log := Logger()

	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return errors.New("viewport: controller is closed")
	}
	c.gen++
	gen := c.gen
	id := uuid.NewString()
	old := c.session
	c.session = nil
	c.pages = nil
	c.tracker.Observe(nil, nil)
	c.progress = 0
	c.phase = PhaseLoading
	c.mu.Unlock()

	if old != nil {
		if err := old.doc.Close(); err != nil {
			log.Warn("closing replaced document", "session", old.id, "error", err)
		}
	}
	c.notifyPhase(PhaseLoading)
	log.Info("opening document", "session", id, "source", source)

	data, err := c.cfg.Loader.Load(ctx, source, func(loaded, total int64) {
		c.reportProgress(gen, loaded, total)
	})
	if err != nil {
		return c.failOpen(gen, source, err)
	}

	d, err := c.cfg.Opener.OpenMemory(ctx, data)
	if err != nil {
		return c.failOpen(gen, source, err)
	}

	count := d.PageCount()
	pages := make([]*pageState, count)
	for i := 1; i <= count; i++ {
		p := &pageState{number: i}
		pg, err := d.Page(ctx, i)
		if err != nil {
			// A bad page stays blank; its siblings are unaffected.
			p.state = RenderFailed
			p.err = &doc.PageError{Page: i, Err: err}
			log.Warn("page metadata fetch failed", "session", id, "page", i, "error", err)
		} else {
			p.page = pg
			p.natural = pg.Size()
		}
		pages[i-1] = p
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		d.Close()
		log.Info("open superseded", "session", id, "source", source)
		return nil
	}
	c.session = &session{id: id, doc: d}
	c.pages = pages
	c.relayoutLocked()
	c.phase = PhaseReady
	snapshot := c.layoutsLocked()
	c.mu.Unlock()

	c.notifyPhase(PhaseReady)
	c.notifyLayout(snapshot)
	log.Info("document ready", "session", id, "pages", count)
	return nil
}

func (c *Controller) failOpen(gen uint64, source string, err error) error {
	oerr := &doc.OpenError{Source: source, Err: err}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return oerr
	}
	c.phase = PhaseFailed
	c.mu.Unlock()

	Logger().Error("document open failed", "source", source, "error", err)
	c.notifyPhase(PhaseFailed)
	return oerr
}

func (c *Controller) reportProgress(gen uint64, loaded, total int64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	// With an unknown total the last value stands; never divide by zero.
	if total > 0 {
		c.progress = 100 * float64(loaded) / float64(total)
	}
	p := c.progress
	c.mu.Unlock()

	if c.cfg.OnProgress != nil {
		c.cfg.OnProgress(p)
	}
}

// Resize reports the container's new content-box size. Every page's
// geometry is recomputed; pages whose dimensions changed drop their
// bitmaps, and those already rendered with a surface attached re-render
// immediately so pages on screen stay sharp rather than waiting to be
// scrolled back into range.
func (c *Controller) Resize(width, height float64) {
	c.relayout(func() {
		c.width = width
		c.height = height
	})
}

// relayout runs the Resizing pass shared by container resizes and zoom
// changes: apply the mutation, announce PhaseResizing, recompute every
// page's geometry, and return to Ready. The mutation is recorded even
// before the controller is Ready, so the layout pass that follows open
// picks it up. A Close or a new Open landing during the PhaseResizing
// callback wins: the second critical section rechecks the generation
// and phase and leaves their state untouched.
func (c *Controller) relayout(mutate func()) {
	c.mu.Lock()
	mutate()
	if c.phase != PhaseReady && c.phase != PhaseResizing {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.phase = PhaseResizing
	c.mu.Unlock()
	c.notifyPhase(PhaseResizing)

	c.mu.Lock()
	if gen != c.gen || c.phase != PhaseResizing {
		c.mu.Unlock()
		return
	}
	c.relayoutLocked()
	c.phase = PhaseReady
	snapshot := c.layoutsLocked()
	c.mu.Unlock()

	c.notifyPhase(PhaseReady)
	c.notifyLayout(snapshot)
}

// Scroll reports the viewport's vertical offset from the top of the
// page stack. Pages entering the expanded viewport get scheduled.
func (c *Controller) Scroll(top float64) {
	c.mu.Lock()
	c.viewTop = top
	if c.phase == PhaseReady || c.phase == PhaseResizing {
		c.tracker.Update(top, c.height)
	}
	c.mu.Unlock()
}

// SetZoom changes the zoom multiplier and recomputes layout under the
// same invalidation and phase rules as a container resize.
func (c *Controller) SetZoom(zoom float64) {
	if zoom <= 0 {
		return
	}
	c.relayout(func() {
		c.cfg.Layout.Zoom = zoom
	})
}

// Zoom returns the current zoom multiplier.
func (c *Controller) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Layout.Zoom
}

// AttachSurface hands the controller the drawable surface for a page,
// or detaches it when s is nil. A page attached while inside the
// expanded viewport is scheduled right away; a fresh surface never
// counts as holding the page's bitmap.
func (c *Controller) AttachSurface(page int, s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseClosed {
		return errors.New("viewport: controller is closed")
	}
	if page < 1 || page > len(c.pages) {
		return fmt.Errorf("viewport: no page %d", page)
	}
	p := c.pages[page-1]
	p.surface = s
	if p.state == RenderDone {
		p.state = RenderIdle
	}
	if s != nil && c.session != nil && c.tracker.Intersecting(page) {
		c.scheduleLocked(p)
	}
	return nil
}

// Close tears the controller down: the tracker stops firing, in-flight
// renders discard their results on completion, and the document session
// closes. No page state mutates after Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.phase = PhaseClosed
	c.tracker.Close()
	s := c.session
	c.session = nil
	c.pages = nil
	c.mu.Unlock()

	c.cancel()
	c.notifyPhase(PhaseClosed)
	if s == nil {
		return nil
	}
	err := s.doc.Close()
	Logger().Info("document closed", "session", s.id)
	return err
}

// relayoutLocked recomputes geometry for every page at the current
// container width, invalidates bitmaps whose dimensions changed, and
// rebuilds the visibility observations from scratch. Callers hold c.mu.
func (c *Controller) relayoutLocked() {
	offset := 0.0
	regions := make([]Region, 0, len(c.pages))
	for _, p := range c.pages {
		if m, ok := layout.Compute(c.width, p.natural, c.cfg.Layout); ok && m != p.display {
			p.display = m
			p.epoch++
			switch p.state {
			case RenderDone:
				p.state = RenderIdle
				if p.surface != nil {
					c.scheduleLocked(p)
				}
			case RenderFailed:
				// A dimension change is a qualifying trigger; let the
				// tracker retry the page when it comes back into range.
				p.state = RenderIdle
				p.err = nil
			case RenderPending:
				// The in-flight render finishes against stale dimensions
				// and requeues itself via the epoch check.
			}
		}
		p.offsetY = offset
		regions = append(regions, Region{Page: p.number, Top: offset, Height: float64(p.display.Height)})
		offset += float64(p.display.Height) + c.cfg.Gap
	}
	c.tracker.Observe(regions, c.enterLocked)
	c.tracker.Update(c.viewTop, c.height)
}

// enterLocked runs synchronously from the tracker while c.mu is held.
func (c *Controller) enterLocked(page int) {
	if page < 1 || page > len(c.pages) {
		return
	}
	c.scheduleLocked(c.pages[page-1])
}

// Phase returns the controller's current lifecycle state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Progress returns the load progress as a percentage in [0, 100]. The
// value freezes once loading completes or fails.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Session returns an identifier for the currently open document
// session, or the empty string when none is open. Every successful
// Open yields a fresh identifier, even when the source is unchanged,
// so hosts can tell a rebuilt page list from a relayout of the same
// one.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.id
}

// PageCount returns the number of pages in the open document, or zero
// when none is open.
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// State returns the render state for a page. Unknown pages report
// RenderIdle.
func (c *Controller) State(page int) RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 || page > len(c.pages) {
		return RenderIdle
	}
	return c.pages[page-1].state
}

// PageErr returns the error behind a page's failed state, or nil.
func (c *Controller) PageErr(page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 || page > len(c.pages) {
		return nil
	}
	return c.pages[page-1].err
}

// Layouts returns a snapshot of every page's current geometry in page
// order.
func (c *Controller) Layouts() []PageLayout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layoutsLocked()
}

// ContentHeight returns the total height of the page stack, from the
// top of the first page to the bottom of the last.
func (c *Controller) ContentHeight() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return 0
	}
	last := c.pages[len(c.pages)-1]
	return last.offsetY + float64(last.display.Height)
}

func (c *Controller) layoutsLocked() []PageLayout {
	out := make([]PageLayout, len(c.pages))
	for i, p := range c.pages {
		out[i] = PageLayout{
			Number:  p.number,
			Width:   p.display.Width,
			Height:  p.display.Height,
			OffsetY: p.offsetY,
		}
	}
	return out
}

func (c *Controller) notifyPhase(p Phase) {
	if c.cfg.OnPhase != nil {
		c.cfg.OnPhase(p)
	}
}

func (c *Controller) notifyLayout(pages []PageLayout) {
	if c.cfg.OnLayout != nil && len(pages) > 0 {
		c.cfg.OnLayout(pages)
	}
}
