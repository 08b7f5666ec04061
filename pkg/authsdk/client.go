package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client talks to the authflow service. It covers unauthenticated operations
// and creates authenticated Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a bounded request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and returns a session for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return newSession(c, &out), nil
}

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out AuthResponse
	req := LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &out), nil
}

// VerifyToken resolves a bearer token to its user via GET /api/auth/me.
func (c *Client) VerifyToken(ctx context.Context, token string) (User, error) {
	var out MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", token, nil, &out, http.StatusOK); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// NewSessionFromToken wraps a token obtained elsewhere. The user is not
// fetched until Me is called.
func (c *Client) NewSessionFromToken(token string) *Session {
	return &Session{client: c, token: token}
}
