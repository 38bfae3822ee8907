package viewport

// Region is one observed page placeholder's vertical extent, in the
// same document coordinates the host reports scroll offsets in.
type Region struct {
	Page   int
	Top    float64
	Height float64
}

// TrackerConfig tunes when a region counts as entering the viewport.
type TrackerConfig struct {
	// Margin expands the viewport by this many pixels on both vertical
	// edges, so pages start rendering just ahead of the scroll position.
	// Defaults to 200.
	Margin float64

	// MinRatio is the fraction of a region that must overlap the
	// expanded viewport before it counts as intersecting, keeping a
	// one-pixel sliver from triggering a render. Defaults to 0.10.
	MinRatio float64
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.Margin == 0 {
		c.Margin = 200
	}
	if c.MinRatio == 0 {
		c.MinRatio = 0.10
	}
	return c
}

// Tracker watches a set of regions against a scrolling viewport and
// fires a callback once per not-intersecting-to-intersecting transition.
// It is the scroll-driven half of lazy rendering: it only reports that a
// page is near the viewport, it never decides whether the page actually
// needs a render.
//
// Tracker is not safe for concurrent use; the Controller serializes all
// access. Callbacks run synchronously from within Observe and Update.
type Tracker struct {
	cfg     TrackerConfig
	onEnter func(page int)
	regions []Region
	entered map[int]bool

	viewTop    float64
	viewHeight float64
	hasView    bool
	closed     bool
}

// NewTracker creates a tracker with no observed regions.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		cfg:     cfg.withDefaults(),
		entered: make(map[int]bool),
	}
}

// Observe replaces the observed region set and the enter callback.
// Any previous observation is discarded first, so re-running setup after
// a layout pass can never leave a stale region able to fire. Regions
// already inside the viewport fire immediately, mirroring the initial
// report a freshly attached observer delivers.
func (t *Tracker) Observe(regions []Region, onEnter func(page int)) {
	if t.closed {
		return
	}
	t.regions = append(t.regions[:0], regions...)
	t.onEnter = onEnter
	t.entered = make(map[int]bool)
	if t.hasView {
		t.evaluate()
	}
}

// Update reports the viewport's current scroll offset and height and
// re-evaluates every observed region against it.
func (t *Tracker) Update(top, height float64) {
	if t.closed {
		return
	}
	t.viewTop = top
	t.viewHeight = height
	t.hasView = true
	t.evaluate()
}

// Intersecting reports whether the region for the given page currently
// overlaps the expanded viewport.
func (t *Tracker) Intersecting(page int) bool {
	return t.entered[page]
}

// Close discards all observations. No callback fires after Close.
func (t *Tracker) Close() {
	t.closed = true
	t.regions = nil
	t.onEnter = nil
	t.entered = make(map[int]bool)
}

func (t *Tracker) evaluate() {
	lo := t.viewTop - t.cfg.Margin
	hi := t.viewTop + t.viewHeight + t.cfg.Margin
	for _, r := range t.regions {
		in := t.intersects(r, lo, hi)
		was := t.entered[r.Page]
		t.entered[r.Page] = in
		if in && !was && t.onEnter != nil {
			t.onEnter(r.Page)
			if t.closed {
				return
			}
		}
	}
}

func (t *Tracker) intersects(r Region, lo, hi float64) bool {
	if r.Height <= 0 {
		return false
	}
	overlap := min(r.Top+r.Height, hi) - max(r.Top, lo)
	if overlap <= 0 {
		return false
	}
	if overlap/r.Height >= t.cfg.MinRatio {
		return true
	}
	// A region much taller than the viewport can never reach the ratio;
	// if it covers the whole visible height it is unquestionably on
	// screen.
	return t.viewHeight > 0 && overlap >= t.viewHeight
}
