package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
	AlgES256 = "ES256"
)

// MinHMACSecretLength is the shortest HS256 secret accepted (256 bits).
const MinHMACSecretLength = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	// VerificationKey is the key a verifier needs for tokens from this signer.
	VerificationKey() any
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	sign   any
	verify any
}

func (s *keySigner) Alg() string          { return s.method.Alg() }
func (s *keySigner) KID() string          { return s.kid }
func (s *keySigner) VerificationKey() any { return s.verify }

// Sign takes your claims and turns them into a signed JWT string.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.sign)
}

// NewSignerHS256 creates a symmetric signer. The secret must be at least
// MinHMACSecretLength bytes.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	if len(secret) < MinHMACSecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes, got %d", MinHMACSecretLength, len(secret))
	}
	key := append([]byte(nil), secret...)
	return &keySigner{kid: kid, method: jwt.SigningMethodHS256, sign: key, verify: key}, nil
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}
	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodEdDSA,
		sign:   key,
		verify: key.Public().(ed25519.PublicKey),
	}, nil
}

// NewSignerES256 creates an ES256 signer from PEM bytes.
// ECDSA P-256 keys must be in PKCS8 format.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("jwtx: ES256 requires P-256, got %s", key.Curve.Params().Name)
	}
	return &keySigner{kid: kid, method: jwt.SigningMethodES256, sign: key, verify: &key.PublicKey}, nil
}

// NewSignerFromPEM picks the signer matching alg. An empty alg is inferred
// from the key type.
func NewSignerFromPEM(alg, kid string, pemKey []byte) (Signer, error) {
	switch strings.ToUpper(alg) {
	case strings.ToUpper(AlgEdDSA):
		return NewSignerEdDSA(kid, pemKey)
	case AlgES256:
		return NewSignerES256(kid, pemKey)
	case "":
		priv, err := parsePKCS8(pemKey)
		if err != nil {
			return nil, err
		}
		switch priv.(type) {
		case ed25519.PrivateKey:
			return NewSignerEdDSA(kid, pemKey)
		case *ecdsa.PrivateKey:
			return NewSignerES256(kid, pemKey)
		}
		return nil, fmt.Errorf("jwtx: unsupported key type %T", priv)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}

func parsePKCS8(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (PKCS8 required)", block.Type)
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}
