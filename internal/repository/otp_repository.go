package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/model"
)

// OTPRepo stores hashed one-time codes.  Rows are never deleted; a code is
// dead once consumed or past its expiry.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Create supersedes every active code for the same target, channel and
// purpose and inserts o, in one transaction.
func (r *OTPRepo) Create(ctx context.Context, o *model.Otp) error {
	return database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE otps SET consumed=1 WHERE target=? AND channel=? AND purpose=? AND consumed=0",
			o.Target, string(o.Channel), string(o.Purpose)); err != nil {
			return fmt.Errorf("supersede otps: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO otps (target, channel, purpose, code_hash, expires_at, created_at) VALUES (?,?,?,?,?,?)",
			o.Target, string(o.Channel), string(o.Purpose), o.CodeHash, o.ExpiresAt.UTC(), o.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert otp: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		o.ID = uint64(id)
		return nil
	})
}

// LatestActive returns the newest unconsumed code, expired or not, or
// ErrOTPNotFound.
func (r *OTPRepo) LatestActive(ctx context.Context, target string, channel model.OTPChannel, purpose model.OTPPurpose) (*model.Otp, error) {
	var (
		o       model.Otp
		ch, pur string
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, target, channel, purpose, code_hash, expires_at, consumed, attempts, created_at
		FROM otps
		WHERE target=? AND channel=? AND purpose=? AND consumed=0
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		target, string(channel), string(purpose)).
		Scan(&o.ID, &o.Target, &ch, &pur, &o.CodeHash, &o.ExpiresAt, &o.Consumed, &o.Attempts, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	o.Channel = model.OTPChannel(ch)
	o.Purpose = model.OTPPurpose(pur)
	return &o, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, id uint64) (uint32, error) {
	if _, err := r.DB.ExecContext(ctx, "UPDATE otps SET attempts = attempts + 1 WHERE id=?", id); err != nil {
		return 0, err
	}
	var n uint32
	err := r.DB.QueryRowContext(ctx, "SELECT attempts FROM otps WHERE id=?", id).Scan(&n)
	return n, err
}

// Consume marks the code used.  It returns ErrOTPNotFound when the code was
// consumed concurrently.
func (r *OTPRepo) Consume(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE otps SET consumed=1 WHERE id=? AND consumed=0", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOTPNotFound
	}
	return nil
}

// CountSince counts codes issued to target since t, consumed or not.
func (r *OTPRepo) CountSince(ctx context.Context, target string, t time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM otps WHERE target=? AND created_at >= ?", target, t.UTC()).Scan(&n)
	return n, err
}
