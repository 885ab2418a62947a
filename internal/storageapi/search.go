package storageapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
)

const searchPath = "/api/search"

// Hit is a single search result. Path is relative to the searched directory.
type Hit struct {
	Dir  bool   `json:"dir" yaml:"dir"`
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Search is the client for /api/search.
type Search struct {
	t        transport.Transport
	resolver scopepath.Resolver
}

func NewSearch(t transport.Transport, resolver scopepath.Resolver) *Search {
	return &Search{t: t, resolver: resolver}
}

// Query searches below the UI path base and returns hits with UI links.
func (s *Search) Query(ctx context.Context, base, query string) ([]Hit, error) {
	sp := s.resolver.Resolve(base)

	q := sp.Query()
	q.Set("query", query)

	resp, err := s.t.Send(ctx, transport.NewRequest(http.MethodGet, searchPath, q))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", sp.Key(), err)
	}

	hits := []Hit{}
	if err := resp.DecodeJSON(&hits); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	urlBase := s.resolver.UIPath(sp)
	if !strings.HasSuffix(urlBase, "/") {
		urlBase += "/"
	}
	for i := range hits {
		hits[i].URL = urlBase + escapeSegments(strings.TrimPrefix(hits[i].Path, "/"))
		if hits[i].Dir {
			hits[i].URL += "/"
		}
	}

	return hits, nil
}

func escapeSegments(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
