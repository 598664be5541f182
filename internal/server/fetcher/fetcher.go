// Package fetcher downloads add-on manifests over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// MaxManifestSize bounds the accepted manifest body.
const MaxManifestSize = 4 << 20

const cacheSize = 1024

// HTTPFetcher fetches manifests with a bounded timeout. Successful fetches
// are cached per URL for a short TTL and concurrent fetches of one URL are
// collapsed into a single request.
type HTTPFetcher struct {
	client *http.Client
	cache  *expirable.LRU[string, manifest.Manifest]
	sf     singleflight.Group
	logger logging.Logger
}

// New returns an HTTPFetcher. A non-positive ttl disables caching.
func New(timeout, ttl time.Duration, logger logging.Logger) *HTTPFetcher {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout

	f := &HTTPFetcher{client: client, logger: logger.With("module", "fetcher")}
	if ttl > 0 {
		f.cache = expirable.NewLRU[string, manifest.Manifest](cacheSize, nil, ttl)
	}
	return f
}

// Fetch returns the manifest served at url. Transport failures, timeouts
// and non-2xx responses yield common.ErrFetch; bodies that are not a JSON
// object yield common.ErrMalformedManifest. A caller whose ctx ends stops
// waiting without failing other callers of the same URL. The returned
// manifest is owned by the caller.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (manifest.Manifest, error) {
	if f.cache != nil {
		if m, ok := f.cache.Get(url); ok {
			return m.Clone(), nil
		}
	}

	// The shared fetch outlives any single caller; the client timeout
	// bounds it.
	ch := f.sf.DoChan(url, func() (any, error) {
		m, err := f.fetch(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.Add(url, m)
		}
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			f.logger.Warn(ctx, "manifest fetch failed", "error", res.Err)
			return nil, res.Err
		}
		return res.Val.(manifest.Manifest).Clone(), nil
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (manifest.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", common.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	if len(body) > MaxManifestSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", common.ErrMalformedManifest, MaxManifestSize)
	}

	return manifest.Parse(body)
}
