package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
)

// ErrDocumentNotFound is returned when the title-search service has no
// document for a title
var ErrDocumentNotFound = errors.New("title document not found")

// ErrMalformedDocument is returned when a title document is not valid JSON
var ErrMalformedDocument = errors.New("malformed title document")

// Document is a title-search record as served at titleSearchURI + titleId
type Document struct {
	Owner             string `json:"owner"`
	Fractionalization uint64 `json:"fractionalization"`
	Verified          bool   `json:"verified"`
}

// Fetcher downloads title documents and caches them by URL
type Fetcher struct {
	http  *resty.Client
	cache *cache.Cache
}

// NewFetcher creates a fetcher. Successful lookups are kept for ttl.
func NewFetcher(timeout, ttl time.Duration) *Fetcher {
	return &Fetcher{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		cache: cache.New(ttl, 2*ttl),
	}
}

// Fetch returns the document at url. A 404 yields ErrDocumentNotFound and an
// undecodable body ErrMalformedDocument; other failures are transient.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	if v, ok := f.cache.Get(url); ok {
		return v.(*Document), nil
	}

	resp, err := f.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, url)
	case resp.IsError():
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status())
	}

	var doc Document
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, url, err)
	}
	f.cache.SetDefault(url, &doc)
	return &doc, nil
}

// Cached reports how many documents are cached
func (f *Fetcher) Cached() int {
	return f.cache.ItemCount()
}
