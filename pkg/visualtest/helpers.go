package visualtest

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"lectern/pkg/mupdf"
)

// RenderPageToFile rasterizes one page of the PDF at docPath into a PNG
// file, scaled to the given pixel width with the page's aspect ratio
// preserved. Intended for building reference images and inspecting
// rendering regressions by eye.
func RenderPageToFile(docPath string, page int, outputPath string, width int) error {
	d, err := mupdf.Engine{}.Open(context.Background(), docPath)
	if err != nil {
		return fmt.Errorf("open error: %w", err)
	}
	defer d.Close()

	p, err := d.Page(context.Background(), page)
	if err != nil {
		return fmt.Errorf("page error: %w", err)
	}

	size := p.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("page %d reports no size", page)
	}
	height := int(math.Round(float64(width) * size.Height / size.Width))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := p.Rasterize(context.Background(), img); err != nil {
		return fmt.Errorf("rasterize error: %w", err)
	}

	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := savePNG(img, outputPath); err != nil {
		return fmt.Errorf("save error: %w", err)
	}
	return nil
}
