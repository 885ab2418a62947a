package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	token    string
	renewErr error
	renewed  atomic.Int32
	logouts  atomic.Int32
}

func (f *fakeCreds) Token() string { return f.token }

func (f *fakeCreds) Renew(ctx context.Context) error {
	f.renewed.Add(1)
	return f.renewErr
}

func (f *fakeCreds) Logout(ctx context.Context) error {
	f.logouts.Add(1)
	return nil
}

type fixedTracker int

func (f fixedTracker) Active() int { return int(f) }

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not-a-url", "ftp://host", "http://"} {
		_, err := NewClient(u)
		assert.ErrorIs(t, err, ErrNoServerURL, u)
	}
}

func TestClient_SendAddsAuthAndQuery(t *testing.T) {
	var gotPath, gotAuth, gotScope, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get(HeaderAuth)
		gotScope = r.URL.Query().Get("scope")
		gotUA = r.Header.Get(HeaderUserAgent)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"a b.txt"}`))
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "jwt-token"}
	c, err := NewClient(srv.URL+"/", WithCredentials(creds))
	require.NoError(t, err)

	resp, err := c.Send(t.Context(), NewRequest(http.MethodGet, "/api/tus/dir/a b.txt", url.Values{"scope": {"test1"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "/api/tus/dir/a b.txt", gotPath)
	assert.Equal(t, "jwt-token", gotAuth)
	assert.Equal(t, "test1", gotScope)
	assert.Contains(t, gotUA, "storagebrowser/")

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, "a b.txt", out.Name)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Requests)
	assert.Positive(t, stats.BytesRecvTotal)
}

func TestClient_AnonymousSkipsAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(HeaderAuth)
		w.Header().Set(HeaderRenewToken, "true")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "jwt-token"}
	c, err := NewClient(srv.URL, WithCredentials(creds))
	require.NoError(t, err)

	req := NewRequest(http.MethodPost, "/api/login", nil)
	req.Anonymous = true
	_, err = c.Send(t.Context(), req)
	assert.True(t, IsAuth(err))
	assert.Empty(t, gotAuth)
	assert.Zero(t, creds.renewed.Load())
	assert.Zero(t, creds.logouts.Load())
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{"conflict", http.StatusConflict, "", KindConflict, "409 Conflict"},
		{"body message", http.StatusForbidden, "permission denied\n", KindStatus, "permission denied"},
		{"server error", http.StatusInternalServerError, "", KindStatus, "500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL)
			require.NoError(t, err)

			_, err = c.Send(t.Context(), NewRequest(http.MethodPatch, "/api/resources", nil))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.wantMsg, Message(err))
			assert.Equal(t, 1, int(c.Stats().Failures))
		})
	}
}

func TestClient_RenewHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderRenewToken, "true")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Run("renew is called", func(t *testing.T) {
		creds := &fakeCreds{token: "t"}
		c, err := NewClient(srv.URL, WithCredentials(creds))
		require.NoError(t, err)

		_, err = c.Send(t.Context(), NewRequest(http.MethodGet, "/api/resources", nil))
		require.NoError(t, err)
		assert.EqualValues(t, 1, creds.renewed.Load())
	})

	t.Run("renew failure does not fail the request", func(t *testing.T) {
		creds := &fakeCreds{token: "t", renewErr: errors.New("renew broken")}
		c, err := NewClient(srv.URL, WithCredentials(creds))
		require.NoError(t, err)

		resp, err := c.Send(t.Context(), NewRequest(http.MethodGet, "/api/resources", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
	})
}

func TestClient_UnauthorizedLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Run("logs out when idle", func(t *testing.T) {
		creds := &fakeCreds{token: "t"}
		c, err := NewClient(srv.URL, WithCredentials(creds), WithUploadTracker(fixedTracker(0)))
		require.NoError(t, err)

		_, err = c.Send(t.Context(), NewRequest(http.MethodGet, "/api/resources", nil))
		assert.True(t, IsAuth(err))
		assert.EqualValues(t, 1, creds.logouts.Load())
	})

	t.Run("deferred while uploading", func(t *testing.T) {
		creds := &fakeCreds{token: "t"}
		c, err := NewClient(srv.URL, WithCredentials(creds))
		require.NoError(t, err)
		c.SetUploadTracker(fixedTracker(2))

		_, err = c.Send(t.Context(), NewRequest(http.MethodGet, "/api/resources", nil))
		assert.True(t, IsAuth(err))
		assert.Zero(t, creds.logouts.Load())
	})
}

func TestClient_NoConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, err := NewClient(addr, WithTimeout(2*time.Second))
	require.NoError(t, err)

	_, err = c.Send(t.Context(), NewRequest(http.MethodGet, "/api/resources", nil))
	require.Error(t, err)
	assert.True(t, IsNoConnection(err))
	assert.Equal(t, 0, StatusOf(err))
	assert.Equal(t, "000 No connection", Message(err))
	assert.False(t, IsCanceled(err))
}

func TestClient_Canceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = c.Send(ctx, NewRequest(http.MethodGet, "/slow", nil))
	require.Error(t, err)
	assert.True(t, IsNoConnection(err))
	assert.True(t, IsCanceled(err))
}
