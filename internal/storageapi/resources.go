// Package storageapi wraps the backend's REST surface for resources, buckets and
// search on top of a transport.Transport.
package storageapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
)

const (
	resourcesPath = "/api/resources"
	usagePath     = "/api/usage"

	DefaultCacheSize = 128
	DefaultCacheTTL  = 30 * time.Second
)

var ErrNotDirectory = errors.New("storageapi: not a directory")

// Usage is the disk usage of a path.
type Usage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

// Resources is the client for /api/resources.
type Resources struct {
	t        transport.Transport
	resolver scopepath.Resolver
	cache    *expirable.LRU[string, *resource.Resource]
}

// NewResources creates the resources client. A cacheSize of 0 means unbounded.
func NewResources(t transport.Transport, resolver scopepath.Resolver, cacheSize int, cacheTTL time.Duration) *Resources {
	return &Resources{
		t:        t,
		resolver: resolver,
		cache:    expirable.NewLRU[string, *resource.Resource](cacheSize, nil, cacheTTL),
	}
}

// Fetch loads the resource at sp from the backend and refreshes the cache.
func (r *Resources) Fetch(ctx context.Context, sp scopepath.ScopedPath) (*resource.Resource, error) {
	return r.fetch(ctx, sp, sp.Query())
}

// Cached returns the cached resource at sp, fetching it when missing or expired.
func (r *Resources) Cached(ctx context.Context, sp scopepath.ScopedPath) (*resource.Resource, error) {
	if res, ok := r.cache.Get(sp.Key()); ok {
		return res, nil
	}
	return r.Fetch(ctx, sp)
}

// List returns every entry of the directory at sp. It never reads from the cache
// because conflict checks depend on a fresh listing.
func (r *Resources) List(ctx context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error) {
	q := sp.Query()
	q.Set("limit", "-1")

	res, err := r.fetch(ctx, sp, q)
	if err != nil {
		return nil, err
	}
	if !res.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, sp.Path)
	}
	return res.Items, nil
}

func (r *Resources) fetch(ctx context.Context, sp scopepath.ScopedPath, q url.Values) (*resource.Resource, error) {
	resp, err := r.t.Send(ctx, transport.NewRequest(http.MethodGet, resourcesPath, q))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sp.Key(), err)
	}

	var res resource.Resource
	if err := resp.DecodeJSON(&res); err != nil {
		return nil, fmt.Errorf("decode resource %s: %w", sp.Key(), err)
	}

	res.IndexItems(r.resolver.UIPath(sp))
	r.cache.Add(sp.Key(), &res)
	return &res, nil
}

// Post uploads body to sp through the non-resumable endpoint.
func (r *Resources) Post(ctx context.Context, sp scopepath.ScopedPath, body io.Reader, overwrite bool) error {
	q := sp.Query()
	q.Set("override", strconv.FormatBool(overwrite))

	req := transport.NewRequest(http.MethodPost, resourcesPath, q)
	req.BodyReader = body
	req.Header.Set(transport.HeaderContentType, "application/octet-stream")

	defer r.invalidate()
	if _, err := r.t.Send(ctx, req); err != nil {
		return fmt.Errorf("post %s: %w", sp.Key(), err)
	}
	return nil
}

// MakeDir creates the directory sp and its parents.
func (r *Resources) MakeDir(ctx context.Context, sp scopepath.ScopedPath) error {
	q := sp.Query()
	if sp.Path != "/" {
		q.Set("path", sp.Path+"/")
	}
	q.Set("override", "false")

	defer r.invalidate()
	if _, err := r.t.Send(ctx, transport.NewRequest(http.MethodPost, resourcesPath, q)); err != nil {
		return fmt.Errorf("mkdir %s: %w", sp.Key(), err)
	}
	return nil
}

// Put replaces the content of an existing file.
func (r *Resources) Put(ctx context.Context, sp scopepath.ScopedPath, content []byte) error {
	req := transport.NewRequest(http.MethodPut, resourcesPath, sp.Query())
	req.Body = content
	if req.Body == nil {
		req.Body = []byte{}
	}

	defer r.invalidate()
	if _, err := r.t.Send(ctx, req); err != nil {
		return fmt.Errorf("put %s: %w", sp.Key(), err)
	}
	return nil
}

// Delete removes the resource at sp.
func (r *Resources) Delete(ctx context.Context, sp scopepath.ScopedPath) error {
	defer r.invalidate()
	if _, err := r.t.Send(ctx, transport.NewRequest(http.MethodDelete, resourcesPath, sp.Query())); err != nil {
		return fmt.Errorf("delete %s: %w", sp.Key(), err)
	}
	return nil
}

// MoveCopy issues a single PATCH. The scope of from is used for both ends.
func (r *Resources) MoveCopy(ctx context.Context, action resource.Action, from, to scopepath.ScopedPath, overwrite, rename bool) error {
	q := from.Query()
	q.Set("action", string(action))
	q.Set("destination", to.Path)
	q.Set("override", strconv.FormatBool(overwrite))
	q.Set("rename", strconv.FormatBool(rename))

	defer r.invalidate()
	slog.Debug("resource patch", "action", action, "from", from.Key(), "to", to.Key(), "overwrite", overwrite, "rename", rename)
	if _, err := r.t.Send(ctx, transport.NewRequest(http.MethodPatch, resourcesPath, q)); err != nil {
		return fmt.Errorf("%s %s: %w", action, from.Key(), err)
	}
	return nil
}

// Checksum returns the checksum of a file computed by the backend with algo
// (md5, sha1, sha256 or sha512).
func (r *Resources) Checksum(ctx context.Context, sp scopepath.ScopedPath, algo string) (string, error) {
	q := sp.Query()
	q.Set("checksum", algo)

	resp, err := r.t.Send(ctx, transport.NewRequest(http.MethodGet, resourcesPath, q))
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", sp.Key(), err)
	}

	var res resource.Resource
	if err := resp.DecodeJSON(&res); err != nil {
		return "", fmt.Errorf("decode checksum %s: %w", sp.Key(), err)
	}

	sum, ok := res.Checksums[algo]
	if !ok {
		return "", fmt.Errorf("checksum %s: algorithm %q missing from response", sp.Key(), algo)
	}
	return sum, nil
}

// Usage returns the disk usage reported for sp.
func (r *Resources) Usage(ctx context.Context, sp scopepath.ScopedPath) (*Usage, error) {
	resp, err := r.t.Send(ctx, transport.NewRequest(http.MethodGet, usagePath, sp.Query()))
	if err != nil {
		return nil, fmt.Errorf("usage %s: %w", sp.Key(), err)
	}

	var usage Usage
	if err := resp.DecodeJSON(&usage); err != nil {
		return nil, fmt.Errorf("decode usage %s: %w", sp.Key(), err)
	}
	return &usage, nil
}

func (r *Resources) invalidate() {
	r.cache.Purge()
}
