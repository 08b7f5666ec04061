package jwtx_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

const testIssuer = "https://auth.example.test"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newManager(t *testing.T, s jwtx.Signer) *jwtx.Manager {
	t.Helper()
	m, err := jwtx.NewManager(s, jwtx.Options{Issuer: testIssuer})
	require.NoError(t, err)
	return m
}

func testClaims(now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.NewAccessClaims(jwtx.AccessParams{
		Subject:  "user-123",
		TenantID: "tenant-1",
		Role:     "user",
		Email:    "user@example.com",
		Epoch:    3,
	}, testIssuer, ttl, now)
}

func TestManager_SignAndVerify(t *testing.T) {
	edPEM, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	esPEM, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	hs, err := jwtx.NewSignerHS256("hs", testSecret)
	require.NoError(t, err)
	ed, err := jwtx.NewSignerEdDSA("ed", edPEM)
	require.NoError(t, err)
	es, err := jwtx.NewSignerES256("es", esPEM)
	require.NoError(t, err)

	for _, s := range []jwtx.Signer{hs, ed, es} {
		t.Run(s.Alg(), func(t *testing.T) {
			m := newManager(t, s)

			token, err := m.Sign(testClaims(time.Now(), time.Hour))
			require.NoError(t, err)

			claims, err := m.Verify(token)
			require.NoError(t, err)
			require.Equal(t, "user-123", claims.Subject)
			require.Equal(t, "tenant-1", claims.TenantID)
			require.Equal(t, "user", claims.Role)
			require.Equal(t, "user@example.com", claims.Email)
			require.Equal(t, int64(3), claims.Epoch)
			require.Equal(t, testIssuer, claims.Issuer)
			require.NotEmpty(t, claims.ID)
		})
	}
}

func TestManager_Expired(t *testing.T) {
	hs, err := jwtx.NewSignerHS256("hs", testSecret)
	require.NoError(t, err)
	m := newManager(t, hs)

	token, err := m.Sign(testClaims(time.Now().Add(-2*time.Hour), time.Hour))
	require.NoError(t, err)

	_, err = m.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestManager_TamperedPayload(t *testing.T) {
	hs, err := jwtx.NewSignerHS256("hs", testSecret)
	require.NoError(t, err)
	m := newManager(t, hs)

	token, err := m.Sign(testClaims(time.Now(), time.Hour))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), `"role":"user"`, `"role":"admin"`, 1)
	require.NotEqual(t, string(payload), forged)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = m.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	hs, err := jwtx.NewSignerHS256("hs", testSecret)
	require.NoError(t, err)
	m := newManager(t, hs)

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("other secret same kid", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256("hs", []byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)
		token, err := newManager(t, other).Sign(testClaims(time.Now(), time.Hour))
		require.NoError(t, err)

		_, err = m.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256("other", testSecret)
		require.NoError(t, err)
		token, err := newManager(t, other).Sign(testClaims(time.Now(), time.Hour))
		require.NoError(t, err)

		_, err = m.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := jwtx.NewManager(hs, jwtx.Options{Issuer: "someone-else"})
		require.NoError(t, err)
		token, err := other.Sign(testClaims(time.Now(), time.Hour))
		require.NoError(t, err)

		_, err = m.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := testClaims(time.Now(), time.Hour)
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		tok.Header["kid"] = "hs"
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(s)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})
}

func TestManager_TrustRetiredSigner(t *testing.T) {
	oldPEM, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	old, err := jwtx.NewSignerEdDSA("2024-old", oldPEM)
	require.NoError(t, err)
	token, err := newManager(t, old).Sign(testClaims(time.Now(), time.Hour))
	require.NoError(t, err)

	current, err := jwtx.NewSignerHS256("current", testSecret)
	require.NoError(t, err)
	m := newManager(t, current)

	_, err = m.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	m.Trust(old)
	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := jwtx.NewManager(nil, jwtx.Options{Issuer: testIssuer})
	require.Error(t, err)

	hs, err := jwtx.NewSignerHS256("hs", testSecret)
	require.NoError(t, err)
	_, err = jwtx.NewManager(hs, jwtx.Options{})
	require.Error(t, err)
}
