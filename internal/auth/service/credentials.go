package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/idx"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128 // bounds argon2 input

	DefaultRole = "user"
)

// CredentialService owns users' password records. Password hashes never
// leave it.
type CredentialService struct {
	Store  store.Store
	Hasher *cryptox.Hasher

	// Applied to every new user.
	DefaultRole   string
	DefaultTenant string
}

// NormalizeEmail trims and lower-cases raw and checks it is a bare address
// (no display name).
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidatePassword enforces length bounds counted in characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Create registers a user and its credential atomically.
func (s *CredentialService) Create(
	ctx context.Context,
	email, password string,
	profile domain.Profile,
) (domain.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := s.DefaultRole
	if role == "" {
		role = DefaultRole
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:          idx.NewAt(now).String(),
		Email:       email,
		FirstName:   strings.TrimSpace(profile.FirstName),
		LastName:    strings.TrimSpace(profile.LastName),
		PhoneNumber: strings.TrimSpace(profile.PhoneNumber),
		Role:        role,
		TenantID:    s.DefaultTenant,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateEmail
			}
			return upstream("create user", err)
		}
		cred := domain.Credential{
			UserID:       user.ID,
			PasswordHash: hash,
			Algorithm:    domain.CredentialAlgorithmArgon2id,
		}
		if err := tx.Credentials().CreateCredential(ctx, cred); err != nil {
			return upstream("create credential", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrUpstreamUnavailable) {
			return domain.User{}, err
		}
		return domain.User{}, upstream("create user", err)
	}
	return user, nil
}

// Verify checks a password. An unknown email still costs one argon2
// evaluation so response timing does not reveal which accounts exist.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (domain.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		_ = s.Hasher.VerifyDummy(password)
		return domain.User{}, ErrUnknownUser
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Hasher.VerifyDummy(password)
			return domain.User{}, ErrUnknownUser
		}
		return domain.User{}, upstream("get user", err)
	}

	cred, err := s.Store.Credentials().GetCredentialByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Hasher.VerifyDummy(password)
			return domain.User{}, ErrBadPassword
		}
		return domain.User{}, upstream("get credential", err)
	}

	if err := s.Hasher.Verify(password, cred.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrBadPassword
		}
		return domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	return user, nil
}
