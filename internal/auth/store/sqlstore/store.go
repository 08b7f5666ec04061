package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

// Store implements every store.Store method except ApplyMigrations, which
// drivers provide by embedding it.
type Store struct {
	db      *sql.DB
	dialect Dialect
	q       *queries
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, q: &queries{db: db, dialect: dialect}}
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &TxStore{tx: tx, q: &queries{db: tx, dialect: s.dialect}}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Users() store.Users                 { return &usersRepo{q: s.q} }
func (s *Store) Credentials() store.Credentials     { return &credentialsRepo{q: s.q} }
func (s *Store) MFAChallenges() store.MFAChallenges { return &mfaChallengesRepo{q: s.q} }
func (s *Store) BackupCodes() store.BackupCodes     { return &backupCodesRepo{q: s.q} }

// TxStore is the store.Tx returned by Store.Tx.
type TxStore struct {
	tx *sql.Tx
	q  *queries
}

func (t *TxStore) Commit() error { return t.tx.Commit() }

func (t *TxStore) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Close is a no-op; the caller commits or rolls back and the pool stays open.
func (t *TxStore) Close() error { return nil }

// Ping is a no-op; the transaction already holds a connection.
func (t *TxStore) Ping(context.Context) error { return nil }

// ApplyMigrations is a no-op; migrations run before any transaction.
func (t *TxStore) ApplyMigrations() error { return nil }

// Tx is not supported inside a transaction.
func (t *TxStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

// WithTx is not supported inside a transaction.
func (t *TxStore) WithTx(context.Context, func(store.Tx) error) error { return sql.ErrTxDone }

func (t *TxStore) Users() store.Users                 { return &usersRepo{q: t.q} }
func (t *TxStore) Credentials() store.Credentials     { return &credentialsRepo{q: t.q} }
func (t *TxStore) MFAChallenges() store.MFAChallenges { return &mfaChallengesRepo{q: t.q} }
func (t *TxStore) BackupCodes() store.BackupCodes     { return &backupCodesRepo{q: t.q} }
