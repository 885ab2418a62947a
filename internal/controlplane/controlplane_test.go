package controlplane

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"
	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/operation"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/openmined/storagebrowser/internal/scopepath"
	"github.com/openmined/storagebrowser/internal/transport"
	"github.com/openmined/storagebrowser/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

// blockingTus accepts tus creates and holds every chunk until the upload is
// cancelled.
type blockingTus struct {
	mu      sync.Mutex
	deletes int
}

func (b *blockingTus) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	switch req.Method {
	case http.MethodPost:
		return &transport.Response{Status: http.StatusCreated, Header: http.Header{}}, nil
	case http.MethodPatch:
		<-ctx.Done()
		return nil, transport.NoConnection(ctx.Err())
	case http.MethodHead:
		h := http.Header{}
		h.Set(transport.HeaderUploadOffset, "0")
		return &transport.Response{Status: http.StatusOK, Header: h}, nil
	case http.MethodDelete:
		b.mu.Lock()
		b.deletes++
		b.mu.Unlock()
		return &transport.Response{Status: http.StatusNoContent, Header: http.Header{}}, nil
	}
	return nil, transport.StatusError(http.StatusMethodNotAllowed, nil)
}

type fakeStorage struct {
	mu      sync.Mutex
	listing map[string][]resource.Entry
	posted  map[string]string
	moved   []string
}

func (f *fakeStorage) List(_ context.Context, sp scopepath.ScopedPath) ([]resource.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listing[sp.Key()], nil
}

func (f *fakeStorage) MoveCopy(_ context.Context, _ resource.Action, from, to scopepath.ScopedPath, _, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved = append(f.moved, from.Key()+" -> "+to.Key())
	return nil
}

func (f *fakeStorage) Post(_ context.Context, sp scopepath.ScopedPath, body io.Reader, _ bool) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted[sp.Key()] = string(data)
	return nil
}

func (f *fakeStorage) MakeDir(context.Context, scopepath.ScopedPath) error {
	return nil
}

type testEnv struct {
	server      *httptest.Server
	storage     *fakeStorage
	tus         *blockingTus
	coordinator *upload.Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	resolver := scopepath.NewResolver(scopepath.BackendS3, scopepath.StaticScope("test1"))
	storage := &fakeStorage{
		listing: map[string][]resource.Entry{"test1:/dst": {{Name: "a.txt"}}},
		posted:  map[string]string{},
	}
	tus := &blockingTus{}

	settings := upload.DefaultSettings()
	settings.ChunkSize = 4
	settings.RetryCount = 0
	coordinator := upload.NewCoordinator(tus, resolver, settings)
	t.Cleanup(coordinator.AbortAll)

	h := NewHandlers(resolver, upload.NewDispatcher(coordinator, storage), operation.NewExecutor(storage, resolver))
	routes, err := SetupRoutes(h, RouteConfig{AuthToken: testToken, EventInterval: 20 * time.Millisecond})
	require.NoError(t, err)

	ts := httptest.NewServer(routes)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, storage: storage, tus: tus, coordinator: coordinator}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestIndexAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.Client().Get(env.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "storagebrowser", info["app"])
}

func TestTokenAuth(t *testing.T) {
	env := newTestEnv(t)
	url := env.server.URL + "/v1/resolve?path=/buckets/photos/a"

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer " + testToken, "", http.StatusOK},
		{"query", "", "&token=" + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url+tt.query, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.server.Client().Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestTokenAuth_Disabled(t *testing.T) {
	resolver := scopepath.NewResolver(scopepath.BackendLocal, nil)
	h := NewHandlers(resolver, nil, nil)
	routes, err := SetupRoutes(h, RouteConfig{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/resolve?path=/files/docs/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path":"/docs","key":"/docs"}`, w.Body.String())
}

func TestResolve(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/v1/resolve?path=/buckets/photos/2024/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"scope":"photos","path":"/2024","key":"photos:/2024"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/v1/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), ErrCodeBadRequest)
}

func TestConflictsAndTransfers(t *testing.T) {
	env := newTestEnv(t)
	items := []operation.Item{{Name: "a.txt", URL: "/buckets/test1/a.txt"}}

	resp, body := env.do(t, http.MethodPost, "/v1/conflicts", ConflictRequest{Items: items, Destination: "/buckets/test1/dst"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"hasConflict":true,"duplicateNames":["a.txt"],"suggestedName":"a (1).txt"}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/v1/operations/copy", TransferRequest{Items: items, Destination: "/buckets/test1/dst"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var res operation.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "conflict", res.Error)

	resp, body = env.do(t, http.MethodPost, "/v1/operations/move", TransferRequest{
		Items:       items,
		Destination: "/buckets/test1/dst",
		Options:     operation.Options{Overwrite: true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "/buckets/test1/dst", res.RedirectPath)
	assert.Equal(t, []string{"test1:/a.txt -> test1:/dst/a.txt"}, env.storage.moved)

	resp, _ = env.do(t, http.MethodPost, "/v1/operations/copy", TransferRequest{Destination: "/buckets/test1/dst"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConflicts_WithPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.storage.listing["test1:/dst"] = []resource.Entry{{Name: "a.txt"}, {Name: "b.txt"}, {Name: "a (1).txt"}}
	items := []operation.Item{
		{Name: "a.txt", URL: "/buckets/test1/a.txt"},
		{Name: "b.txt", URL: "/buckets/test1/b.txt"},
	}

	tests := []struct {
		name   string
		policy conflict.Policy
		want   string
	}{
		{"custom name", conflict.Policy{Rename: true, CustomName: "report.txt"}, `{"resolvedNames":["report.txt","b (1).txt"],"action":"rename"}`},
		{"taken custom name", conflict.Policy{Rename: true, CustomName: "b.txt"}, `{"resolvedNames":["a (2).txt","b (1).txt"],"action":"rename"}`},
		{"overwrite", conflict.Policy{Overwrite: true}, `{"resolvedNames":["a.txt","b.txt"],"action":"overwrite"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := tt.policy
			resp, body := env.do(t, http.MethodPost, "/v1/conflicts", ConflictRequest{
				Items:       items,
				Destination: "/buckets/test1/dst",
				Policy:      &policy,
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var got struct {
				HasConflict    bool            `json:"hasConflict"`
				DuplicateNames []string        `json:"duplicateNames"`
				Resolution     json.RawMessage `json:"resolution"`
			}
			require.NoError(t, json.Unmarshal(body, &got))
			assert.True(t, got.HasConflict)
			assert.Equal(t, []string{"a.txt", "b.txt"}, got.DuplicateNames)
			assert.JSONEq(t, tt.want, string(got.Resolution))
		})
	}

	t.Run("no conflict has no resolution", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/v1/conflicts", ConflictRequest{
			Items:       []operation.Item{{Name: "c.txt", URL: "/buckets/test1/c.txt"}},
			Destination: "/buckets/test1/dst",
			Policy:      &conflict.Policy{Rename: true},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"hasConflict":false,"duplicateNames":[]}`, string(body))
	})
}

func TestUploads(t *testing.T) {
	env := newTestEnv(t)

	t.Run("simple", func(t *testing.T) {
		path := writeFile(t, "note.txt", []byte("abc"))
		resp, body := env.do(t, http.MethodPost, "/v1/uploads", UploadRequest{LocalPath: path, Path: "/buckets/test1/note.txt"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.JSONEq(t, `{"resumable":false}`, string(body))
		assert.Equal(t, "abc", env.storage.posted["test1:/note.txt"])
	})

	t.Run("missing local file", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/v1/uploads", UploadRequest{LocalPath: "/does/not/exist", Path: "/buckets/test1/x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("resumable then abort", func(t *testing.T) {
		path := writeFile(t, "blob.bin", bytes.Repeat([]byte{0x00, 0xff, 0x10, 0x7f}, 16))
		resp, body := env.do(t, http.MethodPost, "/v1/uploads", UploadRequest{LocalPath: path, Path: "/buckets/test1/blob.bin"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

		var started UploadResponse
		require.NoError(t, json.Unmarshal(body, &started))
		require.True(t, started.Resumable)
		require.NotNil(t, started.Upload)
		assert.Equal(t, "test1:/blob.bin", started.Upload.Key)
		assert.EqualValues(t, 64, started.Upload.Size)

		resp, body = env.do(t, http.MethodGet, "/v1/uploads", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list UploadListResponse
		require.NoError(t, json.Unmarshal(body, &list))
		require.Len(t, list.Uploads, 1)

		resp, _ = env.do(t, http.MethodPost, "/v1/uploads/abort", AbortRequest{Key: "test1:/blob.bin"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Zero(t, env.coordinator.Active())

		resp, body = env.do(t, http.MethodPost, "/v1/uploads/abort", AbortRequest{Key: "test1:/blob.bin"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), ErrCodeNotFound)

		resp, _ = env.do(t, http.MethodPost, "/v1/uploads/abort-all", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestUploadEvents(t *testing.T) {
	env := newTestEnv(t)

	path := writeFile(t, "blob.bin", bytes.Repeat([]byte{0x00, 0xff}, 32))
	resp, body := env.do(t, http.MethodPost, "/v1/uploads", UploadRequest{LocalPath: path, Path: "/buckets/test1/blob.bin"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + eventsRoute + "?token=" + testToken
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var first UploadListResponse
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.Len(t, first.Uploads, 1)
	assert.Equal(t, "test1:/blob.bin", first.Uploads[0].Key)

	env.coordinator.AbortAll()

	assert.Eventually(t, func() bool {
		var next UploadListResponse
		if err := wsjson.Read(ctx, conn, &next); err != nil {
			return false
		}
		return len(next.Uploads) == 0
	}, 3*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestMetricsAndFallbacks(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/v1/uploads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "storagebrowser_controlplane_requests_total")

	resp, body = env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), ErrCodeNotFound)

	resp, _ = env.do(t, http.MethodDelete, "/v1/resolve", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStats(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("down"))
	}))
	defer backend.Close()

	client, err := transport.NewClient(backend.URL)
	require.NoError(t, err)
	_, err = client.Send(t.Context(), transport.NewRequest(http.MethodGet, "/api/resources", nil))
	require.Error(t, err)

	resolver := scopepath.NewResolver(scopepath.BackendLocal, nil)
	h := NewHandlers(resolver, nil, nil).WithStats(client)
	routes, err := SetupRoutes(h, RouteConfig{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Transport.Requests)
	assert.EqualValues(t, 1, resp.Transport.Failures)
	assert.NotEmpty(t, resp.Transport.LastError)
	assert.Zero(t, resp.ActiveUploads)
}

func TestSetupRoutes_InvalidRate(t *testing.T) {
	_, err := SetupRoutes(NewHandlers(scopepath.Resolver{}, nil, nil), RouteConfig{RateLimit: "lots"})
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	resolver := scopepath.NewResolver(scopepath.BackendLocal, nil)
	storage := &fakeStorage{}
	h := NewHandlers(resolver, nil, operation.NewExecutor(storage, resolver))
	routes, err := SetupRoutes(h, RouteConfig{RateLimit: "1-M"})
	require.NoError(t, err)

	body := `{"items":[{"name":"a","url":"/files/a"}],"destination":"/files/b"}`
	var statuses []int
	for range 2 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/conflicts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		routes.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, statuses)
}
