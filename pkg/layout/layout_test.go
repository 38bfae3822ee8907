package layout

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lectern/pkg/doc"
)

func TestComputeFitWidth(t *testing.T) {
	// Fit-to-width sizes the page to the configured fraction of the
	// container, so the scale keeps growing as the container does.
	natural := doc.Size{Width: 600, Height: 800}
	cfg := Config{Policy: FitWidth, WidthRatio: 0.9}

	tests := []struct {
		name      string
		container float64
		want      Metrics
	}{
		{"container matches natural width", 600, Metrics{Width: 540, Height: 720, Scale: 0.9, RenderScale: 0.9}},
		{"wider container upscales", 1000, Metrics{Width: 900, Height: 1200, Scale: 1.5, RenderScale: 1.5}},
		{"no upper bound", 2000, Metrics{Width: 1800, Height: 2400, Scale: 3, RenderScale: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Compute(tt.container, natural, cfg)
			if !ok {
				t.Fatal("expected layout to compute")
			}
			if diff := cmp.Diff(tt.want, m); diff != "" {
				t.Errorf("metrics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeFitCap(t *testing.T) {
	tests := []struct {
		name      string
		natural   doc.Size
		maxWidth  float64
		maxScale  float64
		wantScale float64
	}{
		{"width bound wins", doc.Size{Width: 2000, Height: 1000}, 1000, 1.5, 0.5},
		{"scale bound wins", doc.Size{Width: 400, Height: 300}, 1000, 1.5, 1.5},
		{"exact tie", doc.Size{Width: 1000, Height: 500}, 1500, 1.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Policy: FitCap, MaxWidth: tt.maxWidth, MaxScale: tt.maxScale}
			m, ok := Compute(800, tt.natural, cfg)
			if !ok {
				t.Fatal("expected layout to compute")
			}
			if m.Scale != tt.wantScale {
				t.Errorf("scale = %v, want %v", m.Scale, tt.wantScale)
			}
		})
	}
}

func TestComputeUnmeasuredContainerIsNoOp(t *testing.T) {
	natural := doc.Size{Width: 600, Height: 800}
	for _, w := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if _, ok := Compute(w, natural, Config{}); ok {
			t.Errorf("container width %v: expected no-op", w)
		}
	}
}

func TestComputeDegenerateNaturalSizeIsNoOp(t *testing.T) {
	for _, n := range []doc.Size{{Width: 0, Height: 800}, {Width: 600, Height: 0}, {Width: -1, Height: -1}} {
		if _, ok := Compute(1000, n, Config{}); ok {
			t.Errorf("natural %v: expected no-op", n)
		}
	}
}

func TestComputePreservesAspectRatio(t *testing.T) {
	sizes := []doc.Size{
		{Width: 612, Height: 792},  // US Letter
		{Width: 595, Height: 842},  // A4
		{Width: 1920, Height: 540}, // wide
		{Width: 101, Height: 997},  // awkward primes
	}
	for _, n := range sizes {
		for _, w := range []float64{320, 777, 1440} {
			m, ok := Compute(w, n, Config{})
			if !ok {
				t.Fatalf("layout failed for %v at width %v", n, w)
			}
			// Rounded dimensions must stay within half a pixel of the
			// true scaled size, which bounds the aspect drift.
			if math.Abs(float64(m.Width)-n.Width*m.Scale) > 0.5 {
				t.Errorf("width %d drifts from %v×%v", m.Width, n.Width, m.Scale)
			}
			if math.Abs(float64(m.Height)-n.Height*m.Scale) > 0.5 {
				t.Errorf("height %d drifts from %v×%v", m.Height, n.Height, m.Scale)
			}
		}
	}
}

func TestComputeResizeRoundTrip(t *testing.T) {
	// Layout is a pure function of the current width: returning to W1
	// reproduces the W1 result exactly, with no memoized drift.
	natural := doc.Size{Width: 600, Height: 800}
	cfg := Config{Policy: FitWidth, WidthRatio: 0.85}

	l1, _ := Compute(1000, natural, cfg)
	l2, _ := Compute(640, natural, cfg)
	l3, _ := Compute(1000, natural, cfg)

	if diff := cmp.Diff(l1, l3); diff != "" {
		t.Errorf("round trip drifted (-first +again):\n%s", diff)
	}
	if cmp.Equal(l1, l2) {
		t.Error("expected different widths to produce different layouts")
	}
}

func TestComputeZoom(t *testing.T) {
	natural := doc.Size{Width: 600, Height: 800}
	cfg := Config{Policy: FitWidth, WidthRatio: 0.9, Zoom: 2}

	m, ok := Compute(600, natural, cfg)
	if !ok {
		t.Fatal("expected layout to compute")
	}
	if m.Scale != 1.8 {
		t.Errorf("scale = %v, want 1.8", m.Scale)
	}
	if m.Width != 1080 || m.Height != 1440 {
		t.Errorf("display = %dx%d, want 1080x1440", m.Width, m.Height)
	}
}

func TestComputeOversample(t *testing.T) {
	natural := doc.Size{Width: 600, Height: 800}
	cfg := Config{Policy: FitWidth, WidthRatio: 0.9, Oversample: 2}

	m, ok := Compute(600, natural, cfg)
	if !ok {
		t.Fatal("expected layout to compute")
	}
	if m.Scale != 0.9 {
		t.Errorf("display scale = %v, want 0.9", m.Scale)
	}
	if m.RenderScale != 1.8 {
		t.Errorf("render scale = %v, want 1.8", m.RenderScale)
	}
	w, h := m.RasterSize()
	if w != 1080 || h != 1440 {
		t.Errorf("raster = %dx%d, want 1080x1440", w, h)
	}
}

func TestRasterSizeIdentity(t *testing.T) {
	m, _ := Compute(1000, doc.Size{Width: 600, Height: 800}, Config{})
	w, h := m.RasterSize()
	if w != m.Width || h != m.Height {
		t.Errorf("identity raster = %dx%d, want %dx%d", w, h, m.Width, m.Height)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	if c.WidthRatio != 0.9 || c.MaxWidth != 1000 || c.MaxScale != 1.5 || c.Zoom != 1 || c.Oversample != 1 {
		t.Errorf("unexpected defaults: %+v", c)
	}

	// Explicit values survive.
	c = Config{WidthRatio: 0.5, Zoom: 3}.WithDefaults()
	if c.WidthRatio != 0.5 || c.Zoom != 3 {
		t.Errorf("explicit values clobbered: %+v", c)
	}
}
