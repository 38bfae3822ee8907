// Package resource retrieves document bytes from local paths and
// network URLs. Network sources are pulled in fixed-size chunks through
// byte-range requests when the server supports them, which keeps load
// progress granular enough to drive a progress bar.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"lectern/pkg/doc"
	stdnet "lectern/std/net"
)

// DefaultChunkSize is the byte-range size used when the caller does not
// override it. Tunable; not a protocol requirement.
const DefaultChunkSize int64 = 64 * 1024

// Loader retrieves a document's raw bytes, reporting progress as data
// arrives. The zero value is not usable; call NewLoader.
type Loader struct {
	fetcher   Fetcher
	chunkSize int64
}

// NewLoader creates a Loader backed by the given fetcher. A nil fetcher
// gets the plain HTTP DefaultFetcher.
func NewLoader(fetcher Fetcher) *Loader {
	if fetcher == nil {
		fetcher = NewFetcher("")
	}
	return &Loader{fetcher: fetcher, chunkSize: DefaultChunkSize}
}

// SetChunkSize overrides the byte-range size for network retrieval.
// Values below one are ignored.
func (l *Loader) SetChunkSize(n int64) {
	if n >= 1 {
		l.chunkSize = n
	}
}

// Load retrieves the bytes at source, which may be an HTTP/HTTPS URL, a
// file:// URL, or a local path. The progress callback, when non-nil,
// receives (loadedBytes, totalBytes) as data arrives.
func (l *Loader) Load(ctx context.Context, source string, progress doc.Progress) ([]byte, error) {
	if stdnet.IsNetworkURL(source) {
		return l.loadNetwork(ctx, source, progress)
	}
	return l.loadFile(ctx, strings.TrimPrefix(source, "file://"), progress)
}

func (l *Loader) loadNetwork(ctx context.Context, source string, progress doc.Progress) ([]byte, error) {
	size, ranges, err := l.fetcher.Probe(source)
	if err != nil || !ranges || size <= 0 {
		// No usable range support; one request gets everything.
		return l.loadWhole(source, progress)
	}

	data := make([]byte, 0, size)
	for start := int64(0); start < size; start += l.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+l.chunkSize-1, size-1)
		chunk, err := l.fetcher.FetchRange(source, start, end)
		if err != nil {
			if errors.Is(err, stdnet.ErrRangeUnsupported) && start == 0 {
				return l.loadWhole(source, progress)
			}
			return nil, fmt.Errorf("loading %s: %w", source, err)
		}
		data = append(data, chunk...)
		if progress != nil {
			progress(int64(len(data)), size)
		}
		if int64(len(chunk)) < end-start+1 {
			return nil, fmt.Errorf("loading %s: short range reply at offset %d", source, start)
		}
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("loading %s: got %d bytes, want %d", source, len(data), size)
	}
	return data, nil
}

func (l *Loader) loadWhole(source string, progress doc.Progress) ([]byte, error) {
	body, _, err := l.fetcher.Fetch(source)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", source, err)
	}
	if progress != nil {
		progress(int64(len(body)), int64(len(body)))
	}
	return body, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, progress doc.Progress) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	total := info.Size()

	data := make([]byte, 0, total)
	buf := make([]byte, l.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if progress != nil {
				progress(int64(len(data)), total)
			}
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
}
