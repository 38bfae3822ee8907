package resource

import (
	"fmt"

	stdnet "lectern/std/net"
)

// Fetcher retrieves document bytes by URI. Probe reports the resource's
// total size and whether byte ranges are honored; FetchRange retrieves
// one inclusive byte range; Fetch retrieves the whole resource at once.
type Fetcher interface {
	Probe(uri string) (size int64, ranges bool, err error)
	FetchRange(uri string, start, end int64) ([]byte, error)
	Fetch(uri string) (body []byte, contentType string, err error)
}

// DefaultFetcher fetches resources over HTTP/HTTPS, resolving relative
// URIs against a base URL.
type DefaultFetcher struct {
	baseURL string
}

// NewFetcher creates a DefaultFetcher with the given base URL.
// Relative URIs passed to the fetch methods will be resolved against
// this base.
func NewFetcher(baseURL string) *DefaultFetcher {
	return &DefaultFetcher{baseURL: baseURL}
}

func (f *DefaultFetcher) resolve(uri string) (string, error) {
	resolved := uri
	if !stdnet.IsNetworkURL(uri) && f.baseURL != "" {
		resolved = stdnet.ResolveURL(f.baseURL, uri)
	}
	if !stdnet.IsNetworkURL(resolved) {
		return "", fmt.Errorf("cannot fetch non-network URI: %s", resolved)
	}
	return resolved, nil
}

// Probe reports the size and range support of the resource at uri.
func (f *DefaultFetcher) Probe(uri string) (int64, bool, error) {
	resolved, err := f.resolve(uri)
	if err != nil {
		return 0, false, err
	}
	return stdnet.ProbeSize(resolved)
}

// FetchRange retrieves the inclusive byte range [start, end] of the
// resource at uri.
func (f *DefaultFetcher) FetchRange(uri string, start, end int64) ([]byte, error) {
	resolved, err := f.resolve(uri)
	if err != nil {
		return nil, err
	}
	return stdnet.FetchRange(resolved, start, end)
}

// Fetch retrieves the whole resource at uri in one request.
func (f *DefaultFetcher) Fetch(uri string) ([]byte, string, error) {
	resolved, err := f.resolve(uri)
	if err != nil {
		return nil, "", err
	}
	return stdnet.Fetch(resolved)
}
