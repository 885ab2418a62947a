package operation

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	action    resource.Action
	from, to  scopepath.ScopedPath
	overwrite bool
	rename    bool
}

type fakeBackend struct {
	mu       sync.Mutex
	listing  map[string][]resource.Entry
	listErr  error
	patchErr error
	listed   []scopepath.ScopedPath
	calls    []call
}

func (f *fakeBackend) List(_ context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, sp)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing[sp.Key()], nil
}

func (f *fakeBackend) MoveCopy(_ context.Context, action resource.Action, from, to scopepath.ScopedPath, overwrite, rename bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{action, from, to, overwrite, rename})
	return f.patchErr
}

func newS3Executor(f *fakeBackend) *Executor {
	return NewExecutor(f, scopepath.NewResolver(scopepath.BackendS3, scopepath.StaticScope("test1")), WithConcurrency(2))
}

func TestExecute_Copy(t *testing.T) {
	tests := []struct {
		name         string
		currentPath  string
		wantRedirect string
		wantReload   bool
	}{
		{"into current directory", "/buckets/test1/dst/", "", true},
		{"into another directory", "/buckets/test1", "/buckets/test1/dst", false},
		{"no current directory", "", "/buckets/test1/dst", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBackend{}
			e := newS3Executor(f)

			res := e.Copy(t.Context(), []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}, "/buckets/test1/dst", Options{CurrentPath: tt.currentPath})
			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.wantRedirect, res.RedirectPath)
			assert.Equal(t, tt.wantReload, res.Reload)
			assert.Equal(t, []string{"a.txt"}, res.AffectedItems)
			assert.Equal(t, "/buckets/test1/dst/a.txt", res.Preselect)

			require.Len(t, f.calls, 1)
			assert.Equal(t, resource.ActionCopy, f.calls[0].action)
			assert.Equal(t, scopepath.ScopedPath{Scope: "test1", Path: "/a.txt"}, f.calls[0].from)
			assert.Equal(t, scopepath.ScopedPath{Scope: "test1", Path: "/dst/a.txt"}, f.calls[0].to)
		})
	}
}

func TestExecute_MoveAlwaysRedirects(t *testing.T) {
	f := &fakeBackend{}
	e := newS3Executor(f)

	res := e.Move(t.Context(), []Item{
		{Name: "a.txt", URL: "/buckets/test1/src/a.txt"},
		{Name: "b", URL: "/buckets/test1/src/b/", IsDir: true},
	}, "/buckets/test1/dst", Options{CurrentPath: "/buckets/test1/dst"})

	require.True(t, res.Success)
	assert.Equal(t, "/buckets/test1/dst", res.RedirectPath)
	assert.False(t, res.Reload)
	assert.Equal(t, "Move operation completed successfully", res.Message)
	require.Len(t, f.calls, 2)
	for _, c := range f.calls {
		assert.Equal(t, resource.ActionMove, c.action)
	}
	assert.Equal(t, []scopepath.ScopedPath{{Scope: "test1", Path: "/dst"}}, f.listed)
}

func TestExecute_Conflict(t *testing.T) {
	f := &fakeBackend{listing: map[string][]resource.Entry{
		"test1:/dst": {{Name: "a.txt"}},
	}}
	e := newS3Executor(f)
	items := []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}

	res := e.Copy(t.Context(), items, "/buckets/test1/dst", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, "conflict", res.Error)
	assert.Equal(t, transport.KindConflict, res.Kind)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, []string{"a.txt"}, res.Conflict.DuplicateNames)
	assert.Equal(t, "a (1).txt", res.Conflict.SuggestedName)
	assert.Empty(t, f.calls)

	for _, opts := range []Options{{Overwrite: true}, {Rename: true}} {
		res = e.Copy(t.Context(), items, "/buckets/test1/dst", opts)
		assert.True(t, res.Success)
	}
	require.Len(t, f.calls, 2)
	assert.True(t, f.calls[0].overwrite)
	assert.True(t, f.calls[1].rename)
}

func TestExecute_RenamePreselect(t *testing.T) {
	f := &fakeBackend{listing: map[string][]resource.Entry{
		"test1:/dst": {{Name: "a.txt"}},
	}}
	e := newS3Executor(f)

	res := e.Copy(t.Context(), []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}, "/buckets/test1/dst", Options{Rename: true})
	require.True(t, res.Success)
	assert.Empty(t, res.Preselect)

	res = e.Copy(t.Context(), []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}, "/buckets/test1/dst", Options{Overwrite: true})
	require.True(t, res.Success)
	assert.Equal(t, "/buckets/test1/dst/a.txt", res.Preselect)

	res = e.Copy(t.Context(), []Item{
		{Name: "b.txt", URL: "/buckets/test1/b.txt"},
		{Name: "a.txt", URL: "/buckets/test1/a.txt"},
	}, "/buckets/test1/dst", Options{Rename: true})
	require.True(t, res.Success)
	assert.Equal(t, "/buckets/test1/dst/b.txt", res.Preselect)
}

func TestExecute_Failures(t *testing.T) {
	items := []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}

	t.Run("listing fails", func(t *testing.T) {
		f := &fakeBackend{listErr: transport.NoConnection(nil)}
		res := newS3Executor(f).Move(t.Context(), items, "/buckets/test1/dst", Options{})
		assert.False(t, res.Success)
		assert.Equal(t, "000 No connection", res.Error)
		assert.Equal(t, transport.KindNoConnection, res.Kind)
		assert.Empty(t, f.calls)
	})

	t.Run("backend rejects", func(t *testing.T) {
		f := &fakeBackend{patchErr: transport.StatusError(http.StatusForbidden, []byte("permission denied"))}
		res := newS3Executor(f).Move(t.Context(), items, "/buckets/test1/dst", Options{})
		assert.False(t, res.Success)
		assert.Equal(t, "permission denied", res.Error)
		assert.Equal(t, transport.KindStatus, res.Kind)
		assert.Len(t, f.calls, 1)
	})

	t.Run("cross scope", func(t *testing.T) {
		f := &fakeBackend{}
		res := newS3Executor(f).Copy(t.Context(), []Item{{Name: "a.txt", URL: "/buckets/other/a.txt"}}, "/buckets/test1/dst", Options{})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "across scopes")
		assert.Empty(t, f.listed)
	})

	t.Run("no items", func(t *testing.T) {
		res := newS3Executor(&fakeBackend{}).Copy(t.Context(), nil, "/buckets/test1/dst", Options{})
		assert.False(t, res.Success)
		assert.Equal(t, ErrNoItems.Error(), res.Error)
	})
}

func TestExecute_LocalBackend(t *testing.T) {
	f := &fakeBackend{}
	e := NewExecutor(f, scopepath.NewResolver(scopepath.BackendLocal, nil))

	res := e.Copy(t.Context(), []Item{{URL: "/files/docs/report.pdf"}}, "/files/archive", Options{CurrentPath: "/files/archive/"})
	require.True(t, res.Success)
	assert.True(t, res.Reload)
	assert.Equal(t, "/files/archive/report.pdf", res.Preselect)
	require.Len(t, f.calls, 1)
	assert.Equal(t, scopepath.ScopedPath{Path: "/archive/report.pdf"}, f.calls[0].to)
}

func TestCheckAndResolve(t *testing.T) {
	f := &fakeBackend{listing: map[string][]resource.Entry{
		"test1:/dst": {{Name: "a.txt"}, {Name: "a (1).txt"}},
	}}
	e := newS3Executor(f)
	items := []Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}, {Name: "b.txt", URL: "/buckets/test1/b.txt"}}

	check, err := e.Check(t.Context(), items, "/buckets/test1/dst")
	require.NoError(t, err)
	assert.True(t, check.HasConflict)

	check, resolution, err := e.CheckAndResolve(t.Context(), items, "/buckets/test1/dst", conflict.Policy{})
	require.NoError(t, err)
	assert.True(t, check.HasConflict)
	assert.Nil(t, resolution)

	_, resolution, err = e.CheckAndResolve(t.Context(), items, "/buckets/test1/dst", conflict.Policy{Rename: true})
	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, conflict.ActionRename, resolution.Action)
	assert.Equal(t, []string{"a (2).txt"}, resolution.ResolvedNames)

	f.listErr = transport.StatusError(http.StatusNotFound, nil)
	_, _, err = e.CheckAndResolve(t.Context(), items, "/buckets/test1/dst", conflict.Policy{Rename: true})
	assert.Error(t, err)
	assert.Empty(t, f.calls)
}
