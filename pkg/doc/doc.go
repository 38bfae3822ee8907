// Package doc defines the boundary to the document engine: the external
// collaborator that decodes a paginated document format and rasterizes
// individual pages into pixel buffers. The viewer core never looks behind
// these interfaces; pkg/mupdf provides the shipped implementation.
package doc

import (
	"context"
	"image/draw"
)

// Size is a page's intrinsic dimensions at scale 1.0, in points,
// as reported by the document engine.
type Size struct {
	Width  float64
	Height float64
}

// Progress reports incremental load progress while a document byte stream
// is being retrieved. total is 0 when the stream length is unknown.
type Progress func(loaded, total int64)

// Opener opens a document from a local file or an in-memory byte stream.
type Opener interface {
	// Open decodes the document at the given filesystem path.
	Open(ctx context.Context, path string) (Document, error)
	// OpenMemory decodes a document from bytes already in memory.
	// The engine may retain data for the lifetime of the Document.
	OpenMemory(ctx context.Context, data []byte) (Document, error)
}

// Document is an open document session. It is owned by exactly one
// component, which is responsible for calling Close.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int
	// Page returns the page with the given 1-based number.
	Page(ctx context.Context, number int) (Page, error)
	// Close releases engine resources. The Document and any Pages
	// obtained from it must not be used afterwards.
	Close() error
}

// Page is a single page of an open document.
type Page interface {
	// Number returns the page's 1-based number.
	Number() int
	// Size returns the page's natural size at scale 1.0.
	Size() Size
	// Rasterize renders the page into dst, filling the whole buffer.
	// The caller chooses the output resolution by sizing dst.
	Rasterize(ctx context.Context, dst draw.Image) error
}
