// Package mupdf adapts the MuPDF engine, via github.com/gen2brain/go-fitz,
// to the document interfaces in pkg/doc. MuPDF handles are not safe for
// concurrent use, so all engine calls for one document are serialized
// behind a mutex; distinct documents render independently.
package mupdf

import (
	"context"
	"errors"
	"fmt"
	"image/draw"
	"sync"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"

	"lectern/pkg/doc"
)

// enginePointDPI is the resolution at which page bounds equal the
// page's natural size in points.
const enginePointDPI = 72

// Engine opens PDF documents with MuPDF. The zero value is ready to use.
type Engine struct{}

// Open opens the PDF file at path.
func (Engine) Open(_ context.Context, path string) (doc.Document, error) {
	fdoc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("mupdf: opening %s: %w", path, err)
	}
	return &document{doc: fdoc}, nil
}

// OpenMemory opens a PDF held in memory. The engine keeps its own
// reference to data; the caller must not mutate it afterwards.
func (Engine) OpenMemory(_ context.Context, data []byte) (doc.Document, error) {
	fdoc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf: opening document from memory: %w", err)
	}
	return &document{doc: fdoc}, nil
}

type document struct {
	mu     sync.Mutex
	doc    *fitz.Document
	closed bool
}

func (d *document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.doc.NumPage()
}

// Page fetches the metadata for the 1-based page number. The natural
// size comes from the page's bounding box at 72 DPI, so it is measured
// in points.
func (d *document) Page(_ context.Context, number int) (doc.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("mupdf: document is closed")
	}
	if number < 1 || number > d.doc.NumPage() {
		return nil, fmt.Errorf("mupdf: page %d out of range 1..%d", number, d.doc.NumPage())
	}
	bounds, err := d.doc.Bound(number - 1)
	if err != nil {
		return nil, fmt.Errorf("mupdf: reading bounds of page %d: %w", number, err)
	}
	return &page{
		doc:    d,
		index:  number - 1,
		number: number,
		size:   doc.Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())},
	}, nil
}

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.doc.Close(); err != nil {
		return fmt.Errorf("mupdf: closing document: %w", err)
	}
	return nil
}

type page struct {
	doc    *document
	index  int
	number int
	size   doc.Size
}

func (p *page) Number() int    { return p.number }
func (p *page) Size() doc.Size { return p.size }

// Rasterize renders the page into dst at whatever resolution dst's
// bounds dictate. The engine renders at the DPI matching the target
// width; the result is then resampled to fit dst exactly, absorbing the
// engine's own rounding of pixmap dimensions.
func (p *page) Rasterize(ctx context.Context, dst draw.Image) error {
	b := dst.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("mupdf: raster target for page %d is empty", p.number)
	}
	if p.size.Width <= 0 {
		return fmt.Errorf("mupdf: page %d has no width", p.number)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dpi := enginePointDPI * float64(b.Dx()) / p.size.Width

	p.doc.mu.Lock()
	if p.doc.closed {
		p.doc.mu.Unlock()
		return errors.New("mupdf: document is closed")
	}
	img, err := p.doc.doc.ImageDPI(p.index, dpi)
	p.doc.mu.Unlock()
	if err != nil {
		return fmt.Errorf("mupdf: rasterizing page %d: %w", p.number, err)
	}

	xdraw.CatmullRom.Scale(dst, b, img, img.Bounds(), xdraw.Src, nil)
	return nil
}
