// Package resource holds the value types exchanged with the storage backend.
package resource

import (
	"net/url"
	"strings"
	"time"

	"github.com/openmined/storagebrowser/internal/scopepath"
)

// Entry is a single item of a directory listing. Index is its position within the
// listing it came from and is not stable across reloads.
type Entry struct {
	Name       string    `json:"name"`
	IsDir      bool      `json:"isDir"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Type       string    `json:"type,omitempty"`
	Extension  string    `json:"extension,omitempty"`
	ModifiedAt time.Time `json:"modified"`
	Index      int       `json:"-"`
	URL        string    `json:"-"`
}

// Resource is the backend's description of a file or a directory.
type Resource struct {
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	IsDir      bool              `json:"isDir"`
	Size       int64             `json:"size"`
	Type       string            `json:"type,omitempty"`
	Extension  string            `json:"extension,omitempty"`
	ModifiedAt time.Time         `json:"modified"`
	Items      []Entry           `json:"items,omitempty"`
	NumDirs    int               `json:"numDirs"`
	NumFiles   int               `json:"numFiles"`
	HasMore    bool              `json:"hasMore,omitempty"`
	Content    string            `json:"content,omitempty"`
	Checksums  map[string]string `json:"checksums,omitempty"`
	URL        string            `json:"-"`
}

// TransferItem is one unit of a move, copy or upload.
type TransferItem struct {
	From scopepath.ScopedPath `json:"from"`
	To   scopepath.ScopedPath `json:"to"`
	Name string               `json:"name"`
}

// SameScope reports whether source and destination live in the same scope.
func (t TransferItem) SameScope() bool {
	return t.From.Scope == t.To.Scope
}

// IndexItems assigns listing positions and UI links to the items of a directory
// resource. baseURL is the UI path of the directory itself.
func (r *Resource) IndexItems(baseURL string) {
	r.URL = baseURL
	if !r.IsDir {
		return
	}
	if !strings.HasSuffix(r.URL, "/") {
		r.URL += "/"
	}
	for i := range r.Items {
		item := &r.Items[i]
		item.Index = i
		item.URL = r.URL + url.PathEscape(item.Name)
		if item.IsDir {
			item.URL += "/"
		}
	}
}

// Names returns the names of the entries in listing order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Action is the PATCH action sent for a move or a copy.
type Action string

const (
	ActionCopy Action = "copy"
	// ActionMove is spelled "rename" on the wire.
	ActionMove Action = "rename"
)
