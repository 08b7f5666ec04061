package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast; the encoding is identical.
func testHasher(pepper string) *Hasher {
	return &Hasher{
		Pepper: pepper,
		Params: Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h := testHasher("pepper")

	hash, err := h.Hash("correct-password")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	require.NoError(t, h.Verify("correct-password", hash))

	again, err := h.Hash("correct-password")
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "salt should differ per hash")
}

func TestHasher_WrongPassword(t *testing.T) {
	h := testHasher("pepper")
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{
		"wrong-password",
		"Correct-Password",
		"correct-password ",
		"",
		strings.Repeat("x", 10000),
	} {
		require.ErrorIs(t, h.Verify(wrong, hash), ErrPasswordMismatch, "password %q", wrong)
	}
}

func TestHasher_PepperIsApplied(t *testing.T) {
	hash, err := testHasher("pepper-one").Hash("password123")
	require.NoError(t, err)

	require.ErrorIs(t, testHasher("pepper-two").Verify("password123", hash), ErrPasswordMismatch)
	require.NoError(t, testHasher("pepper-one").Verify("password123", hash))
}

func TestHasher_InvalidHashFormat(t *testing.T) {
	h := testHasher("")

	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"zero parameters", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.Verify("test-password", tt.invalidHash), ErrInvalidHash)
		})
	}
}

func TestHasher_VerifyUsesEncodedParameters(t *testing.T) {
	old := testHasher("pepper")
	hash, err := old.Hash("password123")
	require.NoError(t, err)

	// A hasher with different defaults still verifies hashes made with the old ones.
	current := testHasher("pepper")
	current.Params.Memory = 2048
	current.Params.Iterations = 2
	require.NoError(t, current.Verify("password123", hash))
}

func TestHasher_VerifyDummyAlwaysFails(t *testing.T) {
	h := testHasher("pepper")
	require.ErrorIs(t, h.VerifyDummy("anything"), ErrPasswordMismatch)
	require.ErrorIs(t, h.VerifyDummy(""), ErrPasswordMismatch)
}

func TestNewHasher_UsesDefaults(t *testing.T) {
	h := NewHasher("p")
	require.Equal(t, DefaultArgon2Params, h.Params)
}

func TestLoadOrCreatePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Len(t, first, 43)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing pepper should be reused")
}

func TestLoadOrCreatePepper_Errors(t *testing.T) {
	_, err := LoadOrCreatePepper("")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = LoadOrCreatePepper(path)
	require.Error(t, err)
}
