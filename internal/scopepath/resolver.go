package scopepath

import (
	"fmt"
	"strings"
)

// Backend is the kind of storage the server is configured with.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// ParseBackend parses a configured storage type. The empty string means local.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendLocal:
		return BackendLocal, nil
	case BackendS3:
		return BackendS3, nil
	default:
		return "", fmt.Errorf("unknown storage type %q", s)
	}
}

// Scoped reports whether the backend partitions its namespace into scopes.
func (b Backend) Scoped() bool {
	return b == BackendS3
}

// ScopeSource supplies the scope the user is currently working in.
type ScopeSource interface {
	ActiveScope() string
}

// StaticScope is a ScopeSource that never changes.
type StaticScope string

func (s StaticScope) ActiveScope() string { return string(s) }

// Resolver maps UI paths to backend paths for one configured backend.
type Resolver struct {
	Backend Backend
	Scopes  ScopeSource
}

// NewResolver creates a resolver. scopes may be nil for local backends.
func NewResolver(backend Backend, scopes ScopeSource) Resolver {
	return Resolver{Backend: backend, Scopes: scopes}
}

// ActiveScope returns the active scope, or "" for scope-less backends.
func (r Resolver) ActiveScope() string {
	if !r.Backend.Scoped() || r.Scopes == nil {
		return ""
	}
	return r.Scopes.ActiveScope()
}

// Resolve translates a UI path into a backend path. Scoped backends take the scope
// from the path itself and fall back to the active scope. Local backends drop the
// "/files" route container and never carry a scope.
func (r Resolver) Resolve(uiPath string) ScopedPath {
	if !r.Backend.Scoped() {
		return ScopedPath{Path: stripFilesRoot(uiPath)}
	}

	if IsScoped(uiPath) {
		return FromScoped(uiPath)
	}

	return ScopedPath{Scope: r.ActiveScope(), Path: Normalize(uiPath)}
}

// UIPath is the inverse of Resolve.
func (r Resolver) UIPath(sp ScopedPath) string {
	if sp.Scope != "" {
		return ToScoped(sp.Scope, sp.Path)
	}
	if !r.Backend.Scoped() {
		if sp.Path == separator {
			return FilesRoot
		}
		return FilesRoot + Normalize(sp.Path)
	}
	return Normalize(sp.Path)
}

func stripFilesRoot(p string) string {
	normalized := Normalize(p)
	if normalized == FilesRoot {
		return separator
	}
	if strings.HasPrefix(normalized, FilesRoot+separator) {
		return normalized[len(FilesRoot):]
	}
	return normalized
}
