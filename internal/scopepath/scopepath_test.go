package scopepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"/files", "/files"},
		{"/files/", "/files"},
		{"files/", "/files"},
		{"//a//b//", "/a/b"},
		{"a", "/a"},
		{"///", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestIsScopedAndExtractScope(t *testing.T) {
	assert.True(t, IsScoped("/buckets/test1"))
	assert.True(t, IsScoped("/buckets/test1/"))
	assert.True(t, IsScoped("/buckets/test1/files"))
	assert.False(t, IsScoped("/files"))
	assert.False(t, IsScoped("/buckets"))
	assert.False(t, IsScoped("/buckets/"))
	assert.False(t, IsScoped("buckets/test1"))

	assert.Equal(t, "test1", ExtractScope("/buckets/test1"))
	assert.Equal(t, "test1", ExtractScope("/buckets/test1/"))
	assert.Equal(t, "test1", ExtractScope("/buckets/test1/files"))
	assert.Equal(t, "", ExtractScope("/files"))
}

func TestToScoped(t *testing.T) {
	assert.Equal(t, "/buckets/test1", ToScoped("test1", "/"))
	assert.Equal(t, "/buckets/test1", ToScoped("test1", ""))
	assert.Equal(t, "/buckets/test1/files", ToScoped("test1", "/files"))
	assert.Equal(t, "/buckets/test1/files", ToScoped("test1", "/files/"))
	assert.Equal(t, "/buckets/test1/files", ToScoped("test1", "files"))
	assert.Equal(t, "/files", ToScoped("", "files/"))
}

func TestFromScoped(t *testing.T) {
	tests := []struct {
		input string
		want  ScopedPath
	}{
		{"/buckets/test1", ScopedPath{Scope: "test1", Path: "/"}},
		{"/buckets/test1/", ScopedPath{Scope: "test1", Path: "/"}},
		{"/buckets/test1/files", ScopedPath{Scope: "test1", Path: "/files"}},
		{"/buckets/test1/files/", ScopedPath{Scope: "test1", Path: "/files"}},
		{"/files/", ScopedPath{Path: "/files"}},
		{"", ScopedPath{Path: "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FromScoped(tt.input))
		})
	}
}

func TestScopedRoundTrip(t *testing.T) {
	scopes := []string{"test1", "photos-2024", "a"}
	paths := []string{"", "/", "/a", "a/b/", "/deep/nested/file.txt", "//x//"}

	for _, scope := range scopes {
		for _, p := range paths {
			got := FromScoped(ToScoped(scope, p))
			assert.Equal(t, scope, got.Scope, "scope for %q", p)
			assert.Equal(t, Normalize(p), got.Path, "path for %q", p)
		}
	}
}

func TestStripScopePrefix(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		scope string
		want  string
	}{
		{"scope root", "/buckets/test1", "test1", "/"},
		{"scope root trailing slash", "/buckets/test1/", "test1", "/"},
		{"nested", "/buckets/test1/files", "test1", "/files"},
		{"nested trailing slash", "/buckets/test1/files/", "test1", "/files/"},
		{"other scope", "/buckets/test2/files", "test1", "/files"},
		{"no scope given", "/buckets/test2/files", "", "/files"},
		{"not scoped", "/files", "test1", "/files"},
		{"not scoped trailing slash", "/files/docs/", "test1", "/files/docs/"},
		{"not scoped relative", "docs/a.txt", "", "/docs/a.txt"},
		{"empty", "", "test1", "/"},
		{"similar scope name", "/buckets/test10/files", "test1", "/files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripScopePrefix(tt.path, tt.scope))
		})
	}
}

func TestParentOf(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/", "", false},
		{"", "", false},
		{"/buckets", "", false},
		{"/buckets/", "", false},
		{"/files", "/", true},
		{"/files/", "/", true},
		{"/files/documents", "/files", true},
		{"/buckets/test1", "/buckets", true},
		{"/buckets/test1/", "/buckets", true},
		{"/buckets/test1/files", "/buckets/test1", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ParentOf(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelativeOf(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{"/", "/", ""},
		{"/", "/files", "files"},
		{"/files", "/files", ""},
		{"/files", "/files/documents", "documents"},
		{"/files/documents", "/files", ".."},
		{"/files/documents", "/files/images", "../images"},
		{"/buckets/test1/files", "/buckets/test1/files/documents", "documents"},
		{"/files", "/filesystem", "../filesystem"},
		{"/a/b/c", "/x", "../../../x"},
		{"/Files", "/files", "../files"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"->"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeOf(tt.base, tt.target))
		})
	}
}

func TestJoinAndBase(t *testing.T) {
	assert.Equal(t, "/a.txt", Join("/", "a.txt"))
	assert.Equal(t, "/dir/a.txt", Join("/dir/", "a.txt"))
	assert.Equal(t, "/dir", Join("/dir", ""))
	assert.Equal(t, "a.txt", Base("/dir/a.txt"))
	assert.Equal(t, "", Base("/"))
}

func TestScopedPathQuery(t *testing.T) {
	q := ScopedPath{Scope: "test1", Path: "/a b"}.Query()
	assert.Equal(t, "/a b", q.Get("path"))
	assert.Equal(t, "test1", q.Get("scope"))

	local := ScopedPath{Path: "/a"}.Query()
	assert.False(t, local.Has("scope"))
	assert.Equal(t, "test1:/a", ScopedPath{Scope: "test1", Path: "/a"}.Key())
	assert.Equal(t, "/a", ScopedPath{Path: "/a"}.Key())
}
