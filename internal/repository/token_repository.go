package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo tracks revoked session tokens by jti.  Tokens are stateless,
// so only logouts are recorded; rows are purged once the token would have
// expired anyway.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Revoke records jti as revoked until exp.  Revoking twice is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, jti string, userID uint64, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (jti, user_id, expires_at) VALUES (?,?,?)",
		jti, userID, exp.UTC())
	return err
}

// IsRevoked reports whether jti was revoked.
func (r *TokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_tokens WHERE jti=?", jti).Scan(&n)
	return n > 0, err
}

// PurgeExpired deletes revocations whose token has expired by now.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
