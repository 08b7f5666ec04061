package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

type usersRepo struct {
	q *queries
}

const userColumns = `id, email, first_name, last_name, phone_number, role, tenant_id,
	token_epoch, mfa_method, mfa_secret, mfa_enabled_at, created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := utc(time.Now())
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, phone_number, role, tenant_id,
			token_epoch, mfa_method, mfa_secret, mfa_enabled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.Role, u.TenantID,
		u.TokenEpoch, string(u.MFAMethod), nullString(u.MFASecret), nullTime(u.MFAEnabledAt),
		utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	return err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanOne(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanOne(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) BumpTokenEpoch(ctx context.Context, userID string) (int64, error) {
	var epoch int64
	err := r.q.queryRow(ctx, `
		UPDATE users SET token_epoch = token_epoch + 1, updated_at = ?
		WHERE id = ?
		RETURNING token_epoch`,
		utc(time.Now()), userID,
	).Scan(&epoch)
	if err != nil {
		return 0, r.q.mapErr(err)
	}
	return epoch, nil
}

func (r *usersRepo) EnableMFA(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	secret *string,
	at time.Time,
) (bool, error) {
	// The guarded update takes the row lock, so a concurrent enablement
	// waits here and then sees mfa_enabled_at already set.
	res, err := r.q.exec(ctx, `
		UPDATE users SET mfa_enabled_at = ?, updated_at = ?
		WHERE id = ? AND mfa_enabled_at IS NULL`,
		utc(at), utc(at), userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	res, err = r.q.exec(ctx, `
		UPDATE users SET mfa_method = ?, mfa_secret = ?, updated_at = ?
		WHERE id = ?`,
		string(method), nullString(secret), utc(at), userID,
	)
	if err != nil {
		return false, err
	}
	if err := requireOneRow(res); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	res, err := r.q.exec(ctx, `
		UPDATE users SET mfa_method = '', mfa_secret = NULL, mfa_enabled_at = NULL, updated_at = ?
		WHERE id = ?`,
		utc(time.Now()), userID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *usersRepo) scanOne(row *sql.Row) (domain.User, error) {
	var (
		u         domain.User
		method    string
		secret    sql.NullString
		enabledAt sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.Role, &u.TenantID,
		&u.TokenEpoch, &method, &secret, &enabledAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, r.q.mapErr(err)
	}
	u.MFAMethod = domain.MFAMethod(method)
	u.MFASecret = stringPtr(secret)
	u.MFAEnabledAt = timePtr(enabledAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if n > 1 {
		return errors.New("sqlstore: more than one row affected")
	}
	return nil
}
