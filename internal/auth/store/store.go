package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so a Tx cannot start another transaction.
type Store interface {
	Users() Users
	Credentials() Credentials
	MFAChallenges() MFAChallenges
	BackupCodes() BackupCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Inside fn only
	// the tx may be used; the sqlite driver has a single connection.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user. A taken email returns ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already lower-cased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// BumpTokenEpoch atomically increments token_epoch and returns the new value.
	BumpTokenEpoch(ctx context.Context, userID string) (int64, error)

	// EnableMFA records the enrolled factor. secret is only set for TOTP.
	// first reports whether this call moved the user from unenrolled to
	// enrolled; of concurrent callers only one sees true.
	EnableMFA(ctx context.Context, userID string, method domain.MFAMethod, secret *string, at time.Time) (first bool, err error)

	// DisableMFA clears mfa_method, mfa_secret and mfa_enabled_at.
	DisableMFA(ctx context.Context, userID string) error
}

type Credentials interface {
	CreateCredential(ctx context.Context, c domain.Credential) error
	GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error)
}

// MFAChallenges stores at most one challenge per (user, method).
type MFAChallenges interface {
	// UpsertChallenge inserts c or replaces the existing row for
	// (c.UserID, c.Method), clearing consumed_at.
	UpsertChallenge(ctx context.Context, c domain.MFAChallenge) error

	GetChallenge(ctx context.Context, userID string, method domain.MFAMethod) (domain.MFAChallenge, error)

	// ConsumeChallenge sets consumed_at only if the stored challenge for
	// (userID, method) still has id challengeID and is unconsumed. It reports
	// whether this call performed the transition.
	ConsumeChallenge(ctx context.Context, userID string, method domain.MFAMethod, challengeID string, at time.Time) (bool, error)

	// ReleaseChallenge undoes a ConsumeChallenge whose follow-up work failed.
	// It clears consumed_at only while the stored challenge still has id
	// challengeID and consumed_at equal to at, and reports whether it did.
	ReleaseChallenge(ctx context.Context, userID string, method domain.MFAMethod, challengeID string, at time.Time) (bool, error)

	// DeleteExpiredChallenges removes challenges whose expiry is before now.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a user.
	CreateBackupCode(ctx context.Context, userID string, codeHash string) error

	// ConsumeBackupCode deletes the code and reports whether it existed.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	// DeleteAllBackupCodes removes all backup codes for a user.
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountUserBackupCodes returns the number of backup codes for a user.
	CountUserBackupCodes(ctx context.Context, userID string) (int, error)
}
