package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

// TokenService mints and validates session tokens. A token is valid only
// while its epoch claim equals the user's stored token_epoch, so RevokeAll
// invalidates every outstanding token with one write.
type TokenService struct {
	Store store.Store
	JWT   *jwtx.Manager
	TTL   time.Duration
	Now   func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultAccessTokenTTL
}

// Issue signs a token for user carrying the epoch currently stored for them.
func (s *TokenService) Issue(ctx context.Context, user domain.User) (domain.IssuedToken, error) {
	current, err := s.Store.Users().GetUserByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.IssuedToken{}, ErrUnknownUser
		}
		return domain.IssuedToken{}, upstream("get user", err)
	}

	now := s.now()
	claims := jwtx.NewAccessClaims(jwtx.AccessParams{
		Subject:  current.ID,
		TenantID: current.TenantID,
		Role:     current.Role,
		Email:    current.Email,
		Epoch:    current.TokenEpoch,
	}, s.JWT.Issuer(), s.ttl(), now)

	token, err := s.JWT.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, upstream("sign token", err)
	}
	return domain.IssuedToken{Token: token, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}

// Validate verifies the signature and expiry of token, then loads the user
// and compares epochs.
func (s *TokenService) Validate(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrTokenMalformed
	}

	claims, err := s.JWT.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.User{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return domain.User{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if claims.Subject == "" {
		return domain.User{}, ErrTokenMalformed
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUnknownUser
		}
		return domain.User{}, upstream("get user", err)
	}
	if claims.Epoch != user.TokenEpoch {
		return domain.User{}, ErrTokenRevoked
	}
	return user, nil
}

// RevokeAll bumps the user's epoch and returns the new value.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	epoch, err := s.Store.Users().BumpTokenEpoch(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUnknownUser
		}
		return 0, upstream("bump token epoch", err)
	}
	return epoch, nil
}
