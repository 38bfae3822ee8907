package resource

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 13)
	}
	return b
}

// countingServer serves content with full range support and tallies the
// kinds of requests it sees.
type countingServer struct {
	*httptest.Server
	mu      sync.Mutex
	heads   int
	ranged  int
	whole   int
	content []byte
}

func newCountingServer(t *testing.T, content []byte) *countingServer {
	t.Helper()
	cs := &countingServer{content: content}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		switch {
		case r.Method == http.MethodHead:
			cs.heads++
		case r.Header.Get("Range") != "":
			cs.ranged++
		default:
			cs.whole++
		}
		cs.mu.Unlock()
		http.ServeContent(w, r, "doc.pdf", time.Time{}, bytes.NewReader(cs.content))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) counts() (heads, ranged, whole int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.heads, cs.ranged, cs.whole
}

func TestLoadChunkedRanges(t *testing.T) {
	content := patternBytes(150000)
	srv := newCountingServer(t, content)

	var events [][2]int64
	l := NewLoader(nil)
	got, err := l.Load(context.Background(), srv.URL+"/doc.pdf", func(loaded, total int64) {
		events = append(events, [2]int64{loaded, total})
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("loaded %d bytes that do not match the served content", len(got))
	}

	want := [][2]int64{{65536, 150000}, {131072, 150000}, {150000, 150000}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("progress events (-want +got):\n%s", diff)
	}
	heads, ranged, whole := srv.counts()
	if heads != 1 || ranged != 3 || whole != 0 {
		t.Errorf("requests = %d HEAD, %d ranged, %d whole; want 1, 3, 0", heads, ranged, whole)
	}
}

func TestLoadCustomChunkSize(t *testing.T) {
	content := patternBytes(10000)
	srv := newCountingServer(t, content)

	l := NewLoader(nil)
	l.SetChunkSize(4096)
	got, err := l.Load(context.Background(), srv.URL+"/doc.pdf", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("loaded bytes do not match")
	}
	if _, ranged, _ := srv.counts(); ranged != 3 {
		t.Errorf("ranged requests = %d, want 3", ranged)
	}
}

func TestLoadWholeWhenRangesUnsupported(t *testing.T) {
	content := patternBytes(5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Accept-Ranges header, no partial replies.
		w.Write(content)
	}))
	defer srv.Close()

	var events [][2]int64
	l := NewLoader(nil)
	got, err := l.Load(context.Background(), srv.URL, func(loaded, total int64) {
		events = append(events, [2]int64{loaded, total})
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("loaded bytes do not match")
	}
	want := [][2]int64{{5000, 5000}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("progress events (-want +got):\n%s", diff)
	}
}

func TestLoadLocalFile(t *testing.T) {
	content := patternBytes(150000)
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	var events [][2]int64
	l := NewLoader(nil)
	got, err := l.Load(context.Background(), path, func(loaded, total int64) {
		events = append(events, [2]int64{loaded, total})
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("loaded bytes do not match")
	}
	if len(events) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(events); i++ {
		if events[i][0] < events[i-1][0] {
			t.Fatalf("progress went backwards: %v", events)
		}
	}
	if last := events[len(events)-1]; last != [2]int64{150000, 150000} {
		t.Errorf("final progress = %v, want {150000 150000}", last)
	}
}

func TestLoadFileURL(t *testing.T) {
	content := patternBytes(64)
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	got, err := NewLoader(nil).Load(context.Background(), "file://"+path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("loaded bytes do not match")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"), nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewLoader(nil).Load(context.Background(), srv.URL, nil); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}

func TestLoadCanceled(t *testing.T) {
	srv := newCountingServer(t, patternBytes(150000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil).Load(ctx, srv.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFetcherRejectsNonNetworkURI(t *testing.T) {
	f := NewFetcher("")
	if _, _, err := f.Fetch("not-a-url"); err == nil {
		t.Fatal("expected error for non-network URI")
	}
}

func TestFetcherResolvesRelativeURI(t *testing.T) {
	content := patternBytes(100)
	srv := newCountingServer(t, content)

	f := NewFetcher(srv.URL + "/")
	body, _, err := f.Fetch("doc.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Fatal("fetched bytes do not match")
	}
}
