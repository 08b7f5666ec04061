package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrPasswordMismatch is returned when a password does not match the stored hash.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrInvalidHash is returned when an encoded hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid hash format")
)

// Argon2Params configures the argon2id key derivation.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// DefaultArgon2Params follows the OWASP minimum recommendation (19 MiB, t=2, p=1).
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

// Hasher produces and verifies PHC-encoded argon2id hashes. The pepper is
// appended to every password before derivation and never stored alongside it.
type Hasher struct {
	Pepper string
	Params Argon2Params

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher using DefaultArgon2Params.
func NewHasher(pepper string) *Hasher {
	return &Hasher{Pepper: pepper, Params: DefaultArgon2Params}
}

// Hash generates a PHC-format argon2id hash string including salt and parameters.
func (h *Hasher) Hash(password string) (string, error) {
	p := h.params()
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password+h.Pepper), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify compares a plaintext password against a PHC-style argon2id hash.
// Parameters are taken from the encoded hash so older hashes keep verifying
// after the defaults change.
func (h *Hasher) Verify(password, encodedHash string) error {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return fmt.Errorf("%w: expected 6 parts", ErrInvalidHash)
	}
	if parts[1] != "argon2id" {
		return fmt.Errorf("%w: not argon2id", ErrInvalidHash)
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return fmt.Errorf("%w: wrong version", ErrInvalidHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: failed to parse parameters: %v", ErrInvalidHash, err)
	}
	if mem == 0 || iters == 0 || par == 0 {
		return fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: failed to decode salt: %v", ErrInvalidHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return fmt.Errorf("%w: failed to decode hash", ErrInvalidHash)
	}

	computed := argon2.IDKey([]byte(password+h.Pepper), salt, iters, mem, par,
		uint32(len(expected)), // #nosec G115 - decoded from our own encoding
	)
	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// VerifyDummy runs one full argon2id evaluation against a throwaway hash and
// always reports a mismatch. Callers use it when the account does not exist so
// that both branches of a login cost the same.
func (h *Hasher) VerifyDummy(password string) error {
	h.dummyOnce.Do(func() {
		seed, err := GenerateToken(TokenSize128)
		if err != nil {
			seed = "authflow-dummy"
		}
		h.dummy, _ = h.Hash(seed)
	})
	if h.dummy == "" {
		return ErrPasswordMismatch
	}
	_ = h.Verify(password, h.dummy)
	return ErrPasswordMismatch
}

func (h *Hasher) params() Argon2Params {
	if h.Params.Memory == 0 {
		return DefaultArgon2Params
	}
	return h.Params
}
