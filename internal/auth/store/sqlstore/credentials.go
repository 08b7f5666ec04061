package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
)

type credentialsRepo struct {
	q *queries
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	now := utc(time.Now())
	_, err := r.q.exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, algorithm, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.PasswordHash, c.Algorithm, now, now,
	)
	return err
}

func (r *credentialsRepo) GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error) {
	var c domain.Credential
	err := r.q.queryRow(ctx, `
		SELECT user_id, password_hash, algorithm, created_at, updated_at
		FROM credentials WHERE user_id = ?`, userID,
	).Scan(&c.UserID, &c.PasswordHash, &c.Algorithm, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Credential{}, r.q.mapErr(err)
	}
	return c, nil
}
