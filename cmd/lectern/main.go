package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"lectern/pkg/layout"
	"lectern/pkg/mupdf"
	"lectern/pkg/resource"
	"lectern/pkg/surface"
	"lectern/pkg/viewport"
	"lectern/pkg/watch"
	stdnet "lectern/std/net"
)

func main() {
	policy := flag.String("policy", "fitwidth", "layout policy: fitwidth or fitcap")
	ratio := flag.Float64("ratio", 0.9, "fraction of the window width a page occupies (fitwidth)")
	maxWidth := flag.Float64("maxw", 1000, "page width cap in pixels (fitcap)")
	maxScale := flag.Float64("maxscale", 1.5, "upscale cap (fitcap)")
	oversample := flag.Float64("oversample", 1, "raster pixels per display pixel")
	reload := flag.Bool("watch", false, "reopen local documents when the file changes")
	verbose := flag.Bool("v", false, "log render scheduling to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lectern [flags] [url-or-path]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		viewport.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	lcfg := layout.Config{
		WidthRatio: *ratio,
		MaxWidth:   *maxWidth,
		MaxScale:   *maxScale,
		Oversample: *oversample,
	}
	switch *policy {
	case "fitwidth":
		lcfg.Policy = layout.FitWidth
	case "fitcap":
		lcfg.Policy = layout.FitCap
	default:
		fmt.Fprintf(os.Stderr, "unknown -policy %q (want fitwidth or fitcap)\n", *policy)
		os.Exit(2)
	}

	a := app.New()
	w := a.NewWindow("lectern")
	w.Resize(fyne.NewSize(1024, 768))

	v, err := newViewer(lcfg, *reload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sourceEntry := widget.NewEntry()
	sourceEntry.SetPlaceHolder("https://example.com/paper.pdf or /path/to/doc.pdf")
	sourceEntry.OnSubmitted = func(s string) {
		if s != "" {
			v.open(s)
		}
	}

	zoomOut := widget.NewButton("-", func() { v.ctrl.SetZoom(v.ctrl.Zoom() / 1.25) })
	zoomReset := widget.NewButton("100%", func() { v.ctrl.SetZoom(1) })
	zoomIn := widget.NewButton("+", func() { v.ctrl.SetZoom(v.ctrl.Zoom() * 1.25) })

	topBar := container.NewBorder(nil, nil, nil, container.NewHBox(zoomOut, zoomReset, zoomIn), sourceEntry)
	bottomBar := container.NewVBox(v.progress, v.status)
	w.SetContent(container.NewBorder(topBar, bottomBar, nil, nil, v.view))
	w.SetOnClosed(v.shutdown)

	// Focus the entry up front; pressing Tab with nothing focusable
	// freezes the GL driver.
	w.Canvas().Focus(sourceEntry)

	if flag.NArg() > 0 {
		sourceEntry.SetText(flag.Arg(0))
		v.open(flag.Arg(0))
	}

	w.ShowAndRun()
}

// viewer wires the viewport controller into the fyne widget tree. The
// controller invokes its callbacks on whatever goroutine did the work,
// so every handler marshals onto the fyne thread with fyne.Do.
type viewer struct {
	ctrl    *viewport.Controller
	reload  bool
	watcher *watch.Watcher

	view     fyne.CanvasObject
	scroll   *container.Scroll
	stack    *fyne.Container
	stackL   *pageStackLayout
	images   []*canvas.Image
	attached string // session whose pages the images are attached to
	status   *widget.Label
	progress *widget.ProgressBar
}

func newViewer(lcfg layout.Config, reload bool) (*viewer, error) {
	v := &viewer{
		reload:   reload,
		stackL:   &pageStackLayout{},
		status:   widget.NewLabel("Open a document to begin."),
		progress: widget.NewProgressBar(),
	}
	v.progress.Hide()
	v.stack = container.New(v.stackL)
	v.scroll = container.NewVScroll(v.stack)

	ctrl, err := viewport.New(viewport.Config{
		Opener: mupdf.Engine{},
		Loader: resource.NewLoader(nil),
		Layout: lcfg,
		OnPhase: func(p viewport.Phase) {
			fyne.Do(func() { v.phaseChanged(p) })
		},
		OnProgress: func(pct float64) {
			fyne.Do(func() { v.progress.SetValue(pct / 100) })
		},
		OnLayout: func(pages []viewport.PageLayout) {
			fyne.Do(func() { v.applyLayout(pages) })
		},
	})
	if err != nil {
		return nil, err
	}
	v.ctrl = ctrl

	v.scroll.OnScrolled = func(pos fyne.Position) {
		ctrl.Scroll(float64(pos.Y))
	}
	v.view = newViewArea(v.scroll, ctrl.Resize)
	return v, nil
}

// open loads a document without blocking the fyne thread. The phase
// callback drives the status widgets; the returned error carries the
// detail worth showing.
func (v *viewer) open(source string) {
	v.status.SetText("Loading " + source)
	go func() {
		if err := v.ctrl.Open(context.Background(), source); err != nil {
			fyne.Do(func() { v.status.SetText(err.Error()) })
		}
	}()
	v.rewatch(source)
}

// rewatch points the file watcher at the newly opened document, or stops
// watching when the source is remote or -watch is off.
func (v *viewer) rewatch(source string) {
	if v.watcher != nil {
		v.watcher.Close()
		v.watcher = nil
	}
	if !v.reload || stdnet.IsNetworkURL(source) {
		return
	}
	path := strings.TrimPrefix(source, "file://")
	wt, err := watch.New(path, 0, func(p string) {
		fyne.Do(func() { v.open(p) })
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch %s: %v\n", path, err)
		return
	}
	v.watcher = wt
}

func (v *viewer) phaseChanged(p viewport.Phase) {
	switch p {
	case viewport.PhaseLoading:
		v.progress.SetValue(0)
		v.progress.Show()
	case viewport.PhaseReady:
		v.progress.Hide()
		v.status.SetText(fmt.Sprintf("%d pages", v.ctrl.PageCount()))
	case viewport.PhaseFailed:
		v.progress.Hide()
	}
}

// applyLayout mirrors the controller's page geometry into the widget
// tree. Every Open builds a fresh page list whose surfaces start nil,
// even when the page count is unchanged (the -watch reload path), so
// the rebuild follows the session identity rather than the widget
// count.
func (v *viewer) applyLayout(pages []viewport.PageLayout) {
	v.stackL.set(pages, v.ctrl.ContentHeight())
	if sess := v.ctrl.Session(); sess != v.attached || len(v.images) != len(pages) {
		v.attached = sess
		v.rebuildPages(pages)
	}
	v.stack.Refresh()
	v.scroll.Refresh()
}

func (v *viewer) rebuildPages(pages []viewport.PageLayout) {
	objects := make([]fyne.CanvasObject, len(pages))
	v.images = make([]*canvas.Image, len(pages))
	for i, p := range pages {
		surf := surface.NewImageSurface()
		surf.PaintPlaceholder(p.Number, p.Width, p.Height)
		img := canvas.NewImageFromImage(surf.Front())
		img.FillMode = canvas.ImageFillStretch
		v.images[i] = img
		objects[i] = img
		surf.SetOnPresent(func() {
			fyne.Do(func() {
				img.Image = surf.Front()
				img.Refresh()
			})
		})
		if err := v.ctrl.AttachSurface(p.Number, surf); err != nil {
			fmt.Fprintf(os.Stderr, "attach page %d: %v\n", p.Number, err)
		}
	}
	v.stack.Objects = objects
}

func (v *viewer) shutdown() {
	if v.watcher != nil {
		v.watcher.Close()
	}
	v.ctrl.Close()
}

// pageStackLayout places one image per page at the vertical offset the
// controller computed, centered horizontally, and reports the stack's
// full extent so the scroll container knows how far it can go.
type pageStackLayout struct {
	pages  []viewport.PageLayout
	height float64
}

func (l *pageStackLayout) set(pages []viewport.PageLayout, height float64) {
	l.pages = pages
	l.height = height
}

func (l *pageStackLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for i, o := range objects {
		if i >= len(l.pages) {
			return
		}
		p := l.pages[i]
		x := (size.Width - float32(p.Width)) / 2
		if x < 0 {
			x = 0
		}
		o.Resize(fyne.NewSize(float32(p.Width), float32(p.Height)))
		o.Move(fyne.NewPos(x, float32(p.OffsetY)))
	}
}

func (l *pageStackLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	var w float32
	for _, p := range l.pages {
		w = max(w, float32(p.Width))
	}
	return fyne.NewSize(w, float32(l.height))
}

// viewArea wraps the scroll container and reports content-box size
// changes, which fyne only exposes through the Resize hook on a widget.
type viewArea struct {
	widget.BaseWidget
	content  fyne.CanvasObject
	last     fyne.Size
	onResize func(w, h float64)
}

func newViewArea(content fyne.CanvasObject, onResize func(w, h float64)) *viewArea {
	a := &viewArea{content: content, onResize: onResize}
	a.ExtendBaseWidget(a)
	return a
}

func (a *viewArea) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(a.content)
}

func (a *viewArea) Resize(size fyne.Size) {
	a.BaseWidget.Resize(size)
	if size == a.last {
		return
	}
	a.last = size
	a.onResize(float64(size.Width), float64(size.Height))
}
