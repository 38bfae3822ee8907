package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"lectern/pkg/layout"
	"lectern/pkg/mupdf"
	"lectern/pkg/resource"
	"lectern/pkg/surface"
	"lectern/pkg/viewport"
)

const (
	sheetThumbWidth = 220
	sheetColumns    = 4
	sheetPad        = 16
)

func main() {
	width := flag.Int("w", 800, "page width in pixels")
	outDir := flag.String("o", ".", "directory for page PNGs")
	page := flag.Int("page", 0, "render a single page (0 renders all)")
	oversample := flag.Float64("oversample", 1, "raster pixels per display pixel")
	sheet := flag.String("sheet", "", "also write a contact sheet PNG to this path")
	timeout := flag.Duration("timeout", 60*time.Second, "abort rendering after this long")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lecternshow [flags] <url-or-path>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *width, *outDir, *page, *oversample, *sheet, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(source string, width int, outDir string, only int, oversample float64, sheetPath string, timeout time.Duration) error {
	if width < 1 {
		return fmt.Errorf("page width must be positive, got %d", width)
	}

	rendered := make(chan int, 64)
	ctrl, err := viewport.New(viewport.Config{
		Opener: mupdf.Engine{},
		Loader: resource.NewLoader(nil),
		Layout: layout.Config{
			// -w is the page width itself, not a window to fit inside.
			WidthRatio: 1,
			Oversample: oversample,
		},
		OnProgress: func(pct float64) {
			fmt.Fprintf(os.Stderr, "\rloading %3.0f%%", pct)
		},
		OnRendered: func(p int) { rendered <- p },
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fmt.Fprintf(os.Stderr, "Fetching %s...\n", source)
	err = ctrl.Open(context.Background(), source)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	count := ctrl.PageCount()
	if count == 0 {
		return fmt.Errorf("document has no pages")
	}
	if only < 0 || only > count {
		return fmt.Errorf("document has no page %d", only)
	}
	targets := make([]int, 0, count)
	if only > 0 {
		targets = append(targets, only)
	} else {
		for n := 1; n <= count; n++ {
			targets = append(targets, n)
		}
	}

	// Lay the pages out at the requested width, then open the virtual
	// viewport over the whole stack so every wanted page qualifies for
	// rendering at once.
	ctrl.Resize(float64(width), 1)
	ctrl.Resize(float64(width), ctrl.ContentHeight())

	fmt.Fprintf(os.Stderr, "Rendering %d pages at width %d...\n", len(targets), width)
	surfaces := make(map[int]*surface.ImageSurface, len(targets))
	for _, n := range targets {
		s := surface.NewImageSurface()
		surfaces[n] = s
		if err := ctrl.AttachSurface(n, s); err != nil {
			return err
		}
	}
	if err := waitRendered(ctrl, targets, rendered, timeout); err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	failed := 0
	for _, n := range targets {
		if ctrl.State(n) != viewport.RenderDone {
			failed++
			fmt.Fprintf(os.Stderr, "page %d failed: %v\n", n, ctrl.PageErr(n))
			continue
		}
		out := filepath.Join(outDir, fmt.Sprintf("page-%03d.png", n))
		if err := writePNG(out, surfaces[n].Front()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", out)
	}

	if sheetPath != "" {
		if err := writeSheet(sheetPath, ctrl, surfaces, targets); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", sheetPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(targets))
	}
	return nil
}

// waitRendered blocks until every target page has either rendered or
// failed for good. Pages whose metadata fetch failed during open are
// already terminal, so the scan converges even when nothing schedules.
func waitRendered(ctrl *viewport.Controller, targets []int, rendered <-chan int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if allTerminal(ctrl, targets) {
			return nil
		}
		select {
		case <-rendered:
		case <-tick.C:
		case <-deadline.C:
			return fmt.Errorf("rendering timed out after %s", timeout)
		}
	}
}

func allTerminal(ctrl *viewport.Controller, targets []int) bool {
	for _, n := range targets {
		if st := ctrl.State(n); st != viewport.RenderDone && st != viewport.RenderFailed {
			return false
		}
	}
	return true
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// writeSheet composes the rendered pages into a labeled thumbnail grid.
func writeSheet(path string, ctrl *viewport.Controller, surfaces map[int]*surface.ImageSurface, targets []int) error {
	type thumb struct {
		page int
		img  *image.RGBA
	}
	thumbs := make([]thumb, 0, len(targets))
	maxH := 0
	for _, n := range targets {
		s := surfaces[n]
		if ctrl.State(n) != viewport.RenderDone || s.Front() == nil {
			continue
		}
		src := s.Front()
		h := src.Bounds().Dy() * sheetThumbWidth / src.Bounds().Dx()
		dst := image.NewRGBA(image.Rect(0, 0, sheetThumbWidth, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		thumbs = append(thumbs, thumb{page: n, img: dst})
		maxH = max(maxH, h)
	}
	if len(thumbs) == 0 {
		return fmt.Errorf("no rendered pages to compose")
	}

	cols := min(sheetColumns, len(thumbs))
	rows := (len(thumbs) + cols - 1) / cols
	cellW := sheetThumbWidth + sheetPad
	cellH := maxH + sheetPad + 14 // room for the page label under each thumb

	dc := gg.NewContext(cols*cellW+sheetPad, rows*cellH+sheetPad)
	dc.SetRGB(0.93, 0.93, 0.93)
	dc.Clear()
	for i, t := range thumbs {
		x := sheetPad + (i%cols)*cellW
		y := sheetPad + (i/cols)*cellH
		dc.DrawImage(t.img, x, y)
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%d", t.page), float64(x)+sheetThumbWidth/2, float64(y+t.img.Bounds().Dy())+10, 0.5, 0.5)
	}
	return dc.SavePNG(path)
}
