// Package storetest holds behaviour tests shared by every store driver.
package storetest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/idx"
)

// RunStore exercises a full store.Store. newStore must return a migrated,
// empty store.
func RunStore(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newStore(t)) })
	t.Run("BackupCodes", func(t *testing.T) { testBackupCodes(t, newStore(t)) })
	t.Run("WithTxRollback", func(t *testing.T) { testWithTxRollback(t, newStore(t)) })
	t.Run("MFAChallenges", func(t *testing.T) {
		s := newStore(t)
		RunChallenges(t, s.MFAChallenges(), func(t *testing.T) string {
			return CreateUser(t, s, strings.ToLower(idx.New().String())+"@example.com").ID
		})
	})
}

// CreateUser inserts a user with the given email and returns it.
func CreateUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	u := domain.User{
		ID:       idx.New().String(),
		Email:    email,
		Role:     "user",
		TenantID: "default",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "ada@example.com")

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", got.Email)
	require.Equal(t, int64(0), got.TokenEpoch)
	require.False(t, got.MFAEnabled())

	got, err = s.Users().GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := domain.User{ID: idx.New().String(), Email: "ada@example.com"}
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	epoch, err := s.Users().BumpTokenEpoch(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), epoch)
	epoch, err = s.Users().BumpTokenEpoch(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), epoch)

	_, err = s.Users().BumpTokenEpoch(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	secret := "JBSWY3DPEHPK3PXP"
	now := time.Now().UTC().Truncate(time.Second)
	first, err := s.Users().EnableMFA(ctx, u.ID, domain.MFAMethodTOTP, &secret, now)
	require.NoError(t, err)
	require.True(t, first)
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.MFAEnabled())
	require.Equal(t, domain.MFAMethodTOTP, got.MFAMethod)
	require.NotNil(t, got.MFASecret)
	require.Equal(t, secret, *got.MFASecret)
	require.WithinDuration(t, now, *got.MFAEnabledAt, time.Second)

	// Switching factor keeps the user enrolled and is not a first enablement.
	first, err = s.Users().EnableMFA(ctx, u.ID, domain.MFAMethodEmail, nil, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, first)
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MFAMethodEmail, got.MFAMethod)
	require.Nil(t, got.MFASecret)
	require.WithinDuration(t, now, *got.MFAEnabledAt, time.Second)

	_, err = s.Users().EnableMFA(ctx, "missing", domain.MFAMethodEmail, nil, now)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Users().DisableMFA(ctx, u.ID))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.MFAEnabled())
	require.Nil(t, got.MFASecret)
	require.Empty(t, got.MFAMethod)

	require.ErrorIs(t, s.Users().DisableMFA(ctx, "missing"), store.ErrNotFound)
}

func testCredentials(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "grace@example.com")

	c := domain.Credential{UserID: u.ID, PasswordHash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", Algorithm: domain.CredentialAlgorithmArgon2id}
	require.NoError(t, s.Credentials().CreateCredential(ctx, c))
	require.ErrorIs(t, s.Credentials().CreateCredential(ctx, c), store.ErrAlreadyExists)

	got, err := s.Credentials().GetCredentialByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, c.PasswordHash, got.PasswordHash)
	require.Equal(t, domain.CredentialAlgorithmArgon2id, got.Algorithm)

	_, err = s.Credentials().GetCredentialByUserID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testBackupCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "linus@example.com")

	for _, h := range []string{"h1", "h2", "h3"} {
		require.NoError(t, s.BackupCodes().CreateBackupCode(ctx, u.ID, h))
	}
	n, err := s.BackupCodes().CountUserBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	ok, err := s.BackupCodes().ConsumeBackupCode(ctx, u.ID, "h2")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.BackupCodes().ConsumeBackupCode(ctx, u.ID, "h2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.BackupCodes().DeleteAllBackupCodes(ctx, u.ID))
	n, err = s.BackupCodes().CountUserBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testWithTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := idx.New().String()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, domain.User{ID: id, Email: "tx@example.com"}); err != nil {
			return err
		}
		// Credential for an unknown user violates the foreign key.
		return tx.Credentials().CreateCredential(ctx, domain.Credential{UserID: "missing", PasswordHash: "x", Algorithm: "x"})
	})
	require.Error(t, err)

	_, err = s.Users().GetUserByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

// RunChallenges exercises a store.MFAChallenges implementation. newUser
// returns a fresh user id the implementation will accept.
func RunChallenges(t *testing.T, c store.MFAChallenges, newUser func(t *testing.T) string) {
	ctx := context.Background()

	t.Run("UpsertSupersedes", func(t *testing.T) {
		userID := newUser(t)
		now := time.Now().UTC()

		first := challenge(userID, domain.MFAMethodEmail, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, first))

		ok, err := c.ConsumeChallenge(ctx, userID, domain.MFAMethodEmail, first.ID, now)
		require.NoError(t, err)
		require.True(t, ok)

		second := challenge(userID, domain.MFAMethodEmail, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, second))

		got, err := c.GetChallenge(ctx, userID, domain.MFAMethodEmail)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)
		require.Nil(t, got.ConsumedAt)
		require.Equal(t, domain.ChallengePending, got.State(now))

		ok, err = c.ConsumeChallenge(ctx, userID, domain.MFAMethodEmail, first.ID, now)
		require.NoError(t, err)
		require.False(t, ok, "superseded challenge must not be consumable")
	})

	t.Run("MethodsAreIndependent", func(t *testing.T) {
		userID := newUser(t)
		now := time.Now().UTC()

		totp := challenge(userID, domain.MFAMethodTOTP, now, 10*time.Minute)
		sms := challenge(userID, domain.MFAMethodSMS, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, totp))
		require.NoError(t, c.UpsertChallenge(ctx, sms))

		got, err := c.GetChallenge(ctx, userID, domain.MFAMethodTOTP)
		require.NoError(t, err)
		require.Equal(t, totp.ID, got.ID)
		require.Equal(t, totp.Secret, got.Secret)
		require.WithinDuration(t, totp.ExpiresAt, got.ExpiresAt, time.Millisecond)

		_, err = c.GetChallenge(ctx, userID, domain.MFAMethodEmail)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ReleaseRestoresPending", func(t *testing.T) {
		userID := newUser(t)
		now := time.Now().UTC()
		ch := challenge(userID, domain.MFAMethodEmail, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, ch))

		consumedAt := now.Truncate(time.Microsecond)
		ok, err := c.ConsumeChallenge(ctx, userID, domain.MFAMethodEmail, ch.ID, consumedAt)
		require.NoError(t, err)
		require.True(t, ok)

		// A different timestamp belongs to someone else's consume.
		ok, err = c.ReleaseChallenge(ctx, userID, domain.MFAMethodEmail, ch.ID, consumedAt.Add(time.Second))
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = c.ReleaseChallenge(ctx, userID, domain.MFAMethodEmail, ch.ID, consumedAt)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := c.GetChallenge(ctx, userID, domain.MFAMethodEmail)
		require.NoError(t, err)
		require.Equal(t, domain.ChallengePending, got.State(now))

		ok, err = c.ConsumeChallenge(ctx, userID, domain.MFAMethodEmail, ch.ID, consumedAt)
		require.NoError(t, err)
		require.True(t, ok, "released challenge is consumable again")

		// A superseding setup is never touched by a stale release.
		next := challenge(userID, domain.MFAMethodEmail, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, next))
		ok, err = c.ReleaseChallenge(ctx, userID, domain.MFAMethodEmail, ch.ID, consumedAt)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ConcurrentConsumeHasOneWinner", func(t *testing.T) {
		userID := newUser(t)
		now := time.Now().UTC()
		ch := challenge(userID, domain.MFAMethodTOTP, now, 10*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, ch))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := c.ConsumeChallenge(ctx, userID, domain.MFAMethodTOTP, ch.ID, now)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())

		got, err := c.GetChallenge(ctx, userID, domain.MFAMethodTOTP)
		require.NoError(t, err)
		require.Equal(t, domain.ChallengeConsumed, got.State(now))
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		userID := newUser(t)
		now := time.Now().UTC()
		stale := challenge(userID, domain.MFAMethodEmail, now.Add(-time.Hour), 5*time.Minute)
		fresh := challenge(userID, domain.MFAMethodSMS, now, 5*time.Minute)
		require.NoError(t, c.UpsertChallenge(ctx, stale))
		require.NoError(t, c.UpsertChallenge(ctx, fresh))

		_, err := c.DeleteExpiredChallenges(ctx, now)
		require.NoError(t, err)

		_, err = c.GetChallenge(ctx, userID, domain.MFAMethodEmail)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = c.GetChallenge(ctx, userID, domain.MFAMethodSMS)
		require.NoError(t, err)
	})
}

func challenge(userID string, method domain.MFAMethod, createdAt time.Time, ttl time.Duration) domain.MFAChallenge {
	return domain.MFAChallenge{
		ID:        idx.NewAt(createdAt).String(),
		UserID:    userID,
		Method:    method,
		Secret:    "secret-" + idx.New().String(),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}
