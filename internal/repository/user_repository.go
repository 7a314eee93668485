package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/model"
	"github.com/iliyamo/solar-crm/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, org_id, name, email, phone, password_hash, role, is_active, created_at, updated_at"

// CreateWithDashboard inserts the user and its empty dashboard row in one
// transaction.  u.ID is set on success.  Email is normalized; duplicate
// email or phone yield ErrEmailExists or ErrPhoneExists.
func (r *UserRepo) CreateWithDashboard(ctx context.Context, u *model.User) error {
	u.Email = utils.NormalizeEmail(u.Email)
	return database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (org_id, name, email, phone, password_hash, role, is_active) VALUES (?,?,?,?,?,?,?)",
			u.OrgID, u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.IsActive)
		if err != nil {
			if key, dup := duplicateKey(err); dup {
				if key == "uq_users_phone" {
					return ErrPhoneExists
				}
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = uint64(id)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dashboards (user_id, org_id, new_leads) VALUES (?,?,0)",
			u.ID, u.OrgID); err != nil {
			return fmt.Errorf("insert dashboard: %w", err)
		}
		return nil
	})
}

// OrgExists reports whether any user belongs to orgID.
func (r *UserRepo) OrgExists(ctx context.Context, orgID string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE org_id=?)", orgID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("org exists: %w", err)
	}
	return ok, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", utils.NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListActive returns the active users of every organization, used by the
// digest job to address owners.
func (r *UserRepo) ListActive(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE is_active=1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u     model.User
		phone sql.NullString
		role  string
	)
	err := s.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &phone, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	u.Role = model.Role(role)
	return &u, nil
}
