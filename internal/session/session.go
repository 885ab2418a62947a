// Package session holds the authenticated user and its token, and keeps both in
// a kvstore so they survive restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openmined/storagebrowser/internal/kvstore"
	"github.com/openmined/storagebrowser/internal/transport"
)

const (
	loginPath = "/api/login"
	renewPath = "/api/renew"

	keyToken = "jwt"
	keyUser  = "user_data"

	// ExpiryBuffer is how long before expiry a token counts as expiring.
	ExpiryBuffer = 5 * time.Minute
)

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrUnknownScope     = errors.New("session: scope not available to user")
)

// Scope is a storage scope the user may work in.
type Scope struct {
	Name       string `json:"name" yaml:"name"`
	RootPrefix string `json:"rootPrefix,omitempty" yaml:"rootPrefix,omitempty"`
}

// User is the account returned by the backend on login and renewal.
type User struct {
	ID              uint    `json:"id" yaml:"id"`
	Username        string  `json:"username" yaml:"username"`
	AvailableScopes []Scope `json:"availableScopes" yaml:"availableScopes"`
	CurrentScope    Scope   `json:"currentScope" yaml:"currentScope"`
	Locale          string  `json:"locale,omitempty" yaml:"locale,omitempty"`
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Recaptcha string `json:"recaptcha"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Session implements transport.Credentials and scopepath.ScopeSource.
type Session struct {
	t     transport.Transport
	store kvstore.Store
	now   func() time.Time

	mu    sync.RWMutex
	token string
	user  *User
}

func New(t transport.Transport, store kvstore.Store) *Session {
	return &Session{t: t, store: store, now: time.Now}
}

// Load restores a previous session from the store. A missing session is not
// an error.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Get(ctx, keyToken)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	var user *User
	if raw, err := s.store.Get(ctx, keyUser); err == nil {
		user = &User{}
		if err := transport.Unmarshal([]byte(raw), user); err != nil {
			slog.Warn("session stored user unreadable", "error", err)
			user = nil
		}
	}

	s.mu.Lock()
	s.token, s.user = token, user
	s.mu.Unlock()
	return nil
}

// Login authenticates with username and password.
func (s *Session) Login(ctx context.Context, username, password string) error {
	req, err := transport.NewRequest(http.MethodPost, loginPath, nil).
		WithJSON(loginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	req.Anonymous = true

	if err := s.authenticate(ctx, req); err != nil {
		return fmt.Errorf("login %s: %w", username, err)
	}
	slog.Info("session login", "user", username)
	return nil
}

// Renew exchanges the current token for a fresh one.
func (s *Session) Renew(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return ErrNotAuthenticated
	}

	req := transport.NewRequest(http.MethodPost, renewPath, nil)
	req.Header.Set(transport.HeaderAuth, token)
	req.Anonymous = true

	if err := s.authenticate(ctx, req); err != nil {
		return fmt.Errorf("renew: %w", err)
	}
	slog.Debug("session renewed")
	return nil
}

// Logout forgets the token and the user.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token, s.user = "", nil
	s.mu.Unlock()

	return errors.Join(
		s.store.Remove(ctx, keyToken),
		s.store.Remove(ctx, keyUser),
	)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the logged in user, nil when logged out.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	u.AvailableScopes = append([]Scope(nil), s.user.AvailableScopes...)
	return &u
}

// ActiveScope is the name of the user's current scope, "" when there is none.
func (s *Session) ActiveScope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.CurrentScope.Name
}

// SetCurrentScope switches the user to one of its available scopes.
func (s *Session) SetCurrentScope(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	found := false
	for _, scope := range s.user.AvailableScopes {
		if scope.Name == name {
			s.user.CurrentScope = scope
			found = true
			break
		}
	}
	user := *s.user
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	return s.saveUser(ctx, &user)
}

// IsExpiringSoon reports whether the token expires within ExpiryBuffer. A
// missing or unreadable token counts as expiring.
func (s *Session) IsExpiringSoon() bool {
	expiresAt, err := ExpiresAt(s.Token())
	if err != nil {
		return true
	}
	return expiresAt.Sub(s.now()) < ExpiryBuffer
}

// EnsureValid renews the token when it is about to expire.
func (s *Session) EnsureValid(ctx context.Context) error {
	if s.Token() == "" {
		return ErrNotAuthenticated
	}
	if s.IsExpiringSoon() {
		return s.Renew(ctx)
	}
	return nil
}

// ExpiresAt reads the expiry of a token without verifying its signature.
func ExpiresAt(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrNotAuthenticated
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

func (s *Session) authenticate(ctx context.Context, req *transport.Request) error {
	resp, err := s.t.Send(ctx, req)
	if err != nil {
		return err
	}

	var auth authResponse
	if err := resp.DecodeJSON(&auth); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if auth.Token == "" {
		return errors.New("auth response carries no token")
	}
	if _, err := ExpiresAt(auth.Token); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = auth.Token
	s.user = &auth.User
	s.mu.Unlock()

	if err := s.store.Set(ctx, keyToken, auth.Token); err != nil {
		return err
	}
	return s.saveUser(ctx, &auth.User)
}

func (s *Session) saveUser(ctx context.Context, user *User) error {
	data, err := transport.Marshal(user)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, keyUser, string(data))
}
