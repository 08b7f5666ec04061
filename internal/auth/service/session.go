package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// DefaultOperationTimeout bounds each store-touching operation.
const DefaultOperationTimeout = 5 * time.Second

// SessionService is the entry point used by the HTTP layer. It composes the
// credential, token and MFA services, takes the acting user only from a
// validated token, and bounds every call with Timeout.
type SessionService struct {
	Credentials *CredentialService
	Tokens      *TokenService
	MFA         *MFAService
	OAuth       *OAuthService
	Timeout     time.Duration
}

func (s *SessionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.Timeout
	if d <= 0 {
		d = DefaultOperationTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Register creates the account and signs the user in.
func (s *SessionService) Register(
	ctx context.Context,
	email, password string,
	profile domain.Profile,
) (domain.IssuedToken, domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Credentials.Create(ctx, email, password, profile)
	if err != nil {
		return domain.IssuedToken{}, domain.User{}, err
	}
	tok, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		return domain.IssuedToken{}, domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return tok, user, nil
}

// Login verifies credentials and issues a token. Every failure other than an
// upstream one is reported as ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.IssuedToken, domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Credentials.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return domain.IssuedToken{}, domain.User{}, err
		}
		slogx.FromContext(ctx).Info("login failed", "reason", err.Error())
		return domain.IssuedToken{}, domain.User{}, ErrInvalidCredentials
	}

	tok, err := s.Tokens.Issue(ctx, user)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return domain.IssuedToken{}, domain.User{}, err
		}
		slogx.FromContext(ctx).Info("login failed", "reason", err.Error())
		return domain.IssuedToken{}, domain.User{}, ErrInvalidCredentials
	}
	return tok, user, nil
}

// VerifyToken resolves a bearer token to its user.
func (s *SessionService) VerifyToken(ctx context.Context, token string) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Tokens.Validate(ctx, token)
}

// Logout revokes every token of the token's user. Calling it again with the
// same token yields ErrTokenRevoked.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Tokens.Validate(ctx, token)
	if err != nil {
		return err
	}
	epoch, err := s.Tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("user logged out", "user_id", user.ID, "token_epoch", epoch)
	return nil
}

func (s *SessionService) SetupMFA(ctx context.Context, token, method string) (domain.SetupPayload, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Tokens.Validate(ctx, token)
	if err != nil {
		return domain.SetupPayload{}, err
	}
	return s.MFA.Setup(ctx, user, method)
}

func (s *SessionService) VerifyMFA(ctx context.Context, token, code, method string) (domain.VerifyResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Tokens.Validate(ctx, token)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	return s.MFA.Verify(ctx, user, code, method)
}

func (s *SessionService) DisableMFA(ctx context.Context, token, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Tokens.Validate(ctx, token)
	if err != nil {
		return err
	}
	return s.MFA.Disable(ctx, user, code)
}

// The *ForUser variants take a user already resolved from a token by
// VerifyToken, as the HTTP authn middleware does.

func (s *SessionService) SetupMFAForUser(ctx context.Context, user domain.User, method string) (domain.SetupPayload, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.MFA.Setup(ctx, user, method)
}

func (s *SessionService) VerifyMFAForUser(ctx context.Context, user domain.User, code, method string) (domain.VerifyResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.MFA.Verify(ctx, user, code, method)
}

func (s *SessionService) DisableMFAForUser(ctx context.Context, user domain.User, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.MFA.Disable(ctx, user, code)
}

// OAuthRedirectURL is pure; it touches neither the store nor the network.
func (s *SessionService) OAuthRedirectURL(provider, redirectURI string) (string, error) {
	return s.OAuth.RedirectURL(provider, redirectURI)
}
