package mupdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"lectern/pkg/doc"
)

// twoPagePDF builds a minimal two-page PDF in memory: a US Letter page
// and a 300x600pt page, both blank. Object offsets in the xref table
// are computed while writing, so the file is internally consistent.
func twoPagePDF() []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")
	obj("4 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 600] >>\nendobj\n")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func openTwoPages(t *testing.T) doc.Document {
	t.Helper()
	d, err := Engine{}.OpenMemory(context.Background(), twoPagePDF())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenMemoryReadsPages(t *testing.T) {
	d := openTwoPages(t)

	if got := d.PageCount(); got != 2 {
		t.Fatalf("PageCount = %d, want 2", got)
	}

	p1, err := d.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	if got := p1.Size(); got.Width != 612 || got.Height != 792 {
		t.Errorf("page 1 size = %+v, want 612x792", got)
	}
	if got := p1.Number(); got != 1 {
		t.Errorf("page 1 number = %d", got)
	}

	p2, err := d.Page(context.Background(), 2)
	if err != nil {
		t.Fatalf("Page(2): %v", err)
	}
	if got := p2.Size(); got.Width != 300 || got.Height != 600 {
		t.Errorf("page 2 size = %+v, want 300x600", got)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.pdf")
	if err := os.WriteFile(path, twoPagePDF(), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	d, err := Engine{}.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if got := d.PageCount(); got != 2 {
		t.Errorf("PageCount = %d, want 2", got)
	}
}

func TestPageOutOfRange(t *testing.T) {
	d := openTwoPages(t)
	for _, n := range []int{0, -1, 3} {
		if _, err := d.Page(context.Background(), n); err == nil {
			t.Errorf("Page(%d): expected error", n)
		}
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := (Engine{}).OpenMemory(context.Background(), []byte("not a pdf")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := (Engine{}).Open(context.Background(), filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRasterizeFillsTarget(t *testing.T) {
	d := openTwoPages(t)
	p, err := d.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}

	// Half display scale and a 2x oversampled buffer both fill exactly.
	for _, dims := range [][2]int{{306, 396}, {612, 792}} {
		dst := image.NewRGBA(image.Rect(0, 0, dims[0], dims[1]))
		if err := p.Rasterize(context.Background(), dst); err != nil {
			t.Fatalf("Rasterize into %dx%d: %v", dims[0], dims[1], err)
		}
		// A blank page renders as opaque white everywhere.
		r, g, b, a := dst.At(dims[0]/2, dims[1]/2).RGBA()
		if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
			t.Errorf("center pixel = %v,%v,%v,%v, want opaque white", r, g, b, a)
		}
	}
}

func TestRasterizeRejectsEmptyTarget(t *testing.T) {
	d := openTwoPages(t)
	p, err := d.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	if err := p.Rasterize(context.Background(), image.NewRGBA(image.Rectangle{})); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestRasterizeCanceledContext(t *testing.T) {
	d := openTwoPages(t)
	p, err := d.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Rasterize(ctx, image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestUseAfterClose(t *testing.T) {
	d := openTwoPages(t)
	p, err := d.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := d.PageCount(); got != 0 {
		t.Errorf("PageCount after close = %d, want 0", got)
	}
	if _, err := d.Page(context.Background(), 1); err == nil {
		t.Error("expected error fetching page after close")
	}
	if err := p.Rasterize(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Error("expected error rasterizing after close")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
