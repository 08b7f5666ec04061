package authsdk

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Session holds a bearer token and the user it belongs to. Tokens are not
// refreshed; once expired or revoked every call returns ErrorCodeInvalidToken.
type Session struct {
	client *Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      User
}

func newSession(c *Client, resp *AuthResponse) *Session {
	return &Session{
		client:    c,
		token:     resp.Token,
		expiresAt: resp.ExpiresAt,
		user:      resp.User,
	}
}

// Token returns the bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt returns the token expiry reported by the server.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// User returns the last known user for this session.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Me fetches the current user and refreshes the cached copy.
func (s *Session) Me(ctx context.Context) (User, error) {
	u, err := s.client.VerifyToken(ctx, s.Token())
	if err != nil {
		return User{}, err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return u, nil
}

// Logout revokes every token issued to this user and clears the session.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/auth/logout", s.Token(), nil, nil, http.StatusNoContent); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
