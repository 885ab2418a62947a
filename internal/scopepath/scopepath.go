// Package scopepath translates user-facing paths into backend-relative paths and
// storage scopes. It is the only place that pattern-matches on path structure.
package scopepath

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// ContainerRoot is the UI container holding every scope (bucket).
	ContainerRoot = "/buckets"

	// FilesRoot is the UI container of a scope-less (local) backend.
	FilesRoot = "/files"

	separator = "/"
)

var (
	// "/buckets/{scope}" optionally followed by "/..."
	scopedRe      = regexp.MustCompile(`(?s)^/buckets/([^/]+)(/.*)?$`)
	scopePrefixRe = regexp.MustCompile(`^/buckets/[^/]+`)
)

// ScopedPath is a backend-relative path together with the scope it lives in.
// An empty Scope means the path is not inside any scope.
type ScopedPath struct {
	Scope string `json:"scope,omitempty"`
	Path  string `json:"path"`
}

// IsScoped reports whether the path carries a scope.
func (s ScopedPath) IsScoped() bool {
	return s.Scope != ""
}

// Query returns the query parameters addressing this path on the backend.
func (s ScopedPath) Query() url.Values {
	q := url.Values{}
	q.Set("path", s.Path)
	if s.Scope != "" {
		q.Set("scope", s.Scope)
	}
	return q
}

// Key identifies the path across scopes. Used to key upload sessions.
func (s ScopedPath) Key() string {
	if s.Scope == "" {
		return s.Path
	}
	return s.Scope + ":" + s.Path
}

func (s ScopedPath) String() string {
	return ToScoped(s.Scope, s.Path)
}

// Normalize makes p absolute, collapses repeated slashes and strips trailing slashes.
// The empty path normalizes to "/".
func Normalize(p string) string {
	if p == "" {
		return separator
	}

	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteString(separator)

	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}

	out := b.String()
	if len(out) > 1 {
		out = strings.TrimRight(out, separator)
	}
	return out
}

// IsScoped reports whether p addresses something inside a scope container.
func IsScoped(p string) bool {
	return scopedRe.MatchString(p)
}

// ExtractScope returns the scope name of a scoped path, or "" if there is none.
func ExtractScope(p string) string {
	m := scopedRe.FindStringSubmatch(p)
	if m == nil {
		return ""
	}
	return m[1]
}

// ToScoped builds the UI path of p inside scope. The root of a scope has no trailing
// path segment. An empty scope yields the normalized path unchanged.
func ToScoped(scope, p string) string {
	normalized := Normalize(p)
	if scope == "" {
		return normalized
	}
	if normalized == separator {
		return ContainerRoot + separator + scope
	}
	return ContainerRoot + separator + scope + normalized
}

// FromScoped is the inverse of ToScoped.
func FromScoped(p string) ScopedPath {
	m := scopedRe.FindStringSubmatch(p)
	if m == nil {
		return ScopedPath{Path: Normalize(p)}
	}
	return ScopedPath{Scope: m[1], Path: Normalize(m[2])}
}

// StripScopePrefix removes the "/buckets/{scope}" container from p. When scope is
// given and matches it is removed, otherwise any scope container is removed. The
// rest of p is kept as is, with a leading "/" ensured.
func StripScopePrefix(p string, scope string) string {
	if scope != "" {
		prefix := ContainerRoot + separator + scope
		if p == prefix || strings.HasPrefix(p, prefix+separator) {
			return withLeadingSeparator(p[len(prefix):])
		}
	}

	if loc := scopePrefixRe.FindStringIndex(p); loc != nil {
		return withLeadingSeparator(p[loc[1]:])
	}

	return withLeadingSeparator(p)
}

func withLeadingSeparator(p string) string {
	if !strings.HasPrefix(p, separator) {
		return separator + p
	}
	return p
}

// ParentOf returns the parent of p. It reports false at the root and at the scope
// container root. The parent of a scope root is the scope container.
func ParentOf(p string) (string, bool) {
	if p == "" || p == separator || p == ContainerRoot {
		return "", false
	}

	normalized := Normalize(p)
	if normalized == separator || normalized == ContainerRoot {
		return "", false
	}

	if m := scopedRe.FindStringSubmatch(normalized); m != nil && m[2] == "" {
		return ContainerRoot, true
	}

	idx := strings.LastIndex(normalized, separator)
	if idx <= 0 {
		return separator, true
	}
	return normalized[:idx], true
}

// RelativeOf returns the relative path leading from base to target, using ".." to
// climb out of base. It returns "" when both are the same.
func RelativeOf(base, target string) string {
	baseParts := segments(Normalize(base))
	targetParts := segments(Normalize(target))

	common := 0
	for common < len(baseParts) && common < len(targetParts) && baseParts[common] == targetParts[common] {
		common++
	}

	parts := make([]string, 0, len(baseParts)-common+len(targetParts)-common)
	for i := common; i < len(baseParts); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, targetParts[common:]...)

	return strings.Join(parts, separator)
}

// Join appends name as a single segment to dir.
func Join(dir, name string) string {
	dir = Normalize(dir)
	name = strings.Trim(name, separator)
	if name == "" {
		return dir
	}
	if dir == separator {
		return separator + name
	}
	return dir + separator + name
}

// Base returns the last segment of p, or "" at the root.
func Base(p string) string {
	normalized := Normalize(p)
	return normalized[strings.LastIndex(normalized, separator)+1:]
}

func segments(p string) []string {
	if p == separator {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, separator), separator)
}
