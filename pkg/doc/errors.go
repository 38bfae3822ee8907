package doc

import "fmt"

// OpenError reports a failure to retrieve or decode a document.
// It is fatal to the session: no pages of the document will render.
type OpenError struct {
	Source string // URL or path the open was attempted on
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open document %s: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// PageError reports a failure to fetch a single page's object or metadata.
// It is local to that page and does not affect its siblings.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// RasterizeError reports a failure to render a single page into its
// target buffer. The page keeps its reserved placeholder size.
type RasterizeError struct {
	Page int
	Err  error
}

func (e *RasterizeError) Error() string {
	return fmt.Sprintf("rasterize page %d: %v", e.Page, e.Err)
}

func (e *RasterizeError) Unwrap() error { return e.Err }
