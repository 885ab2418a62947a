package upload

import (
	"slices"
	"strings"
	"sync"

	"github.com/openmined/storagebrowser/internal/metrics"
)

// Registry tracks the uploads in flight, keyed by backend path.
type Registry struct {
	mu      sync.RWMutex
	uploads map[string]*Upload
}

func NewRegistry() *Registry {
	return &Registry{
		uploads: make(map[string]*Upload),
	}
}

// Active returns the number of registered uploads.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.uploads)
}

func (r *Registry) Get(key string) (*Upload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.uploads[key]
	return u, ok
}

// List returns the registered uploads ordered by key.
func (r *Registry) List() []*Upload {
	r.mu.RLock()
	uploads := make([]*Upload, 0, len(r.uploads))
	for _, u := range r.uploads {
		uploads = append(uploads, u)
	}
	r.mu.RUnlock()

	slices.SortFunc(uploads, func(a, b *Upload) int {
		return strings.Compare(a.key, b.key)
	})
	return uploads
}

// swap registers u and returns the upload it replaced, if any.
func (r *Registry) swap(u *Upload) *Upload {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.uploads[u.key]
	r.uploads[u.key] = u
	metrics.SetUploadsActive(len(r.uploads))
	return prev
}

// remove drops u only if it is still the registered upload for its key. A
// superseded upload never removes its replacement.
func (r *Registry) remove(u *Upload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.uploads[u.key]; !ok || cur != u {
		return false
	}
	delete(r.uploads, u.key)
	metrics.SetUploadsActive(len(r.uploads))
	return true
}

// drain empties the registry and returns what it held.
func (r *Registry) drain() []*Upload {
	r.mu.Lock()
	defer r.mu.Unlock()

	uploads := make([]*Upload, 0, len(r.uploads))
	for _, u := range r.uploads {
		uploads = append(uploads, u)
	}
	r.uploads = make(map[string]*Upload)
	metrics.SetUploadsActive(0)
	return uploads
}
