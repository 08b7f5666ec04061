package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Options captures verifier expectations.
type Options struct {
	// Issuer stamped into and required on every token.
	Issuer string

	// Leeway allows small clock skew when validating exp/nbf/iat.
	Leeway time.Duration
}

// Manager signs tokens with one active signer and verifies tokens against a
// KeySet that always contains that signer.
type Manager struct {
	signer Signer
	keys   *KeySet
	opts   Options
}

// NewManager wires a signer and its verification key together.
func NewManager(signer Signer, opts Options) (*Manager, error) {
	if signer == nil {
		return nil, errors.New("jwtx: nil signer")
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	keys := NewKeySet()
	keys.AddSigner(signer)
	return &Manager{signer: signer, keys: keys, opts: opts}, nil
}

// Trust adds a retired signer's key to the verification set.
func (m *Manager) Trust(s Signer) {
	m.keys.AddSigner(s)
}

// Issuer returns the configured issuer.
func (m *Manager) Issuer() string { return m.opts.Issuer }

// KID returns the active signer's key id.
func (m *Manager) KID() string { return m.signer.KID() }

// Sign stamps the issuer and signs the claims with the active signer.
func (m *Manager) Sign(claims Claims) (string, error) {
	claims.Issuer = m.opts.Issuer
	return m.signer.Sign(claims)
}

// Verify validates signature, issuer and time claims and returns the claims.
// Errors are one of the package sentinels, wrapped with detail.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(m.keys.Algs()),
		jwt.WithIssuer(m.opts.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.opts.Leeway),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		alg, key, err := m.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, kid)
		}
		if t.Method.Alg() != alg {
			return nil, fmt.Errorf("%w: alg %s does not match key %q", ErrInvalidSig, t.Method.Alg(), kid)
		}
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return &claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return fmt.Errorf("%w: %v", ErrUnknownKID, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrInvalidSig):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrIssuer, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
