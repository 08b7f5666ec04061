package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

type mfaChallengesRepo struct {
	q *queries
}

func (r *mfaChallengesRepo) UpsertChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO mfa_challenges (id, user_id, method, secret, created_at, expires_at, consumed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (user_id, method) DO UPDATE SET
			id = excluded.id,
			secret = excluded.secret,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			consumed_at = NULL`,
		c.ID, c.UserID, string(c.Method), c.Secret, utc(c.CreatedAt), utc(c.ExpiresAt),
	)
	return err
}

func (r *mfaChallengesRepo) GetChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
) (domain.MFAChallenge, error) {
	var (
		c          domain.MFAChallenge
		m          string
		consumedAt sql.NullTime
	)
	err := r.q.queryRow(ctx, `
		SELECT id, user_id, method, secret, created_at, expires_at, consumed_at
		FROM mfa_challenges WHERE user_id = ? AND method = ?`,
		userID, string(method),
	).Scan(&c.ID, &c.UserID, &m, &c.Secret, &c.CreatedAt, &c.ExpiresAt, &consumedAt)
	if err != nil {
		return domain.MFAChallenge{}, r.q.mapErr(err)
	}
	c.Method = domain.MFAMethod(m)
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	c.ConsumedAt = timePtr(consumedAt)
	return c, nil
}

// ConsumeChallenge is a compare-and-swap: the WHERE clause only matches the
// exact challenge the caller verified, and only while it is unconsumed.
func (r *mfaChallengesRepo) ConsumeChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	challengeID string,
	at time.Time,
) (bool, error) {
	res, err := r.q.exec(ctx, `
		UPDATE mfa_challenges SET consumed_at = ?
		WHERE user_id = ? AND method = ? AND id = ? AND consumed_at IS NULL`,
		stamp(at), userID, string(method), challengeID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mfaChallengesRepo) ReleaseChallenge(
	ctx context.Context,
	userID string,
	method domain.MFAMethod,
	challengeID string,
	at time.Time,
) (bool, error) {
	res, err := r.q.exec(ctx, `
		UPDATE mfa_challenges SET consumed_at = NULL
		WHERE user_id = ? AND method = ? AND id = ? AND consumed_at = ?`,
		userID, string(method), challengeID, stamp(at),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// stamp truncates to the microsecond postgres keeps, so a consumed_at read
// back or matched in ReleaseChallenge equals the value written.
func stamp(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

func (r *mfaChallengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM mfa_challenges WHERE expires_at < ?`, utc(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
