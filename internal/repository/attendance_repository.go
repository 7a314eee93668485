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

// AttendanceRepo keeps one attendance row per user per IST day.  Days are
// passed as "YYYY-MM-DD".
type AttendanceRepo struct{ DB *sql.DB }

func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{DB: db} }

const attendanceColumns = "id, user_id, org_id, day, status, check_in_at, check_out_at, note, updated_at"

// CheckIn marks the user present on day.  A second check-in on the same
// day returns ErrAlreadyCheckedIn; an absence recorded earlier is
// overwritten.
func (r *AttendanceRepo) CheckIn(ctx context.Context, userID uint64, orgID, day string, at time.Time) (*model.Attendance, error) {
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		cur, err := lockAttendance(ctx, tx, userID, day)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO attendance (user_id, org_id, day, status, check_in_at) VALUES (?,?,?,?,?)",
				userID, orgID, day, string(model.AttendancePresent), at.UTC())
			return err
		case err != nil:
			return err
		case cur.CheckInAt != nil:
			return ErrAlreadyCheckedIn
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE attendance SET status=?, check_in_at=?, check_out_at=NULL, note='' WHERE id=?",
			string(model.AttendancePresent), at.UTC(), cur.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, day)
}

// CheckOut closes the day opened by CheckIn.
func (r *AttendanceRepo) CheckOut(ctx context.Context, userID uint64, day string, at time.Time) (*model.Attendance, error) {
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		cur, err := lockAttendance(ctx, tx, userID, day)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrNotCheckedIn
		case err != nil:
			return err
		case cur.CheckInAt == nil:
			return ErrNotCheckedIn
		case cur.CheckOutAt != nil:
			return ErrAlreadyCheckedOut
		}
		_, err = tx.ExecContext(ctx, "UPDATE attendance SET check_out_at=? WHERE id=?", at.UTC(), cur.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, day)
}

// MarkAbsence records an absence or leave for day.  Days the user already
// checked in on are rejected with ErrConflict.
func (r *AttendanceRepo) MarkAbsence(ctx context.Context, userID uint64, orgID, day string, status model.AttendanceStatus, note string) (*model.Attendance, error) {
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		cur, err := lockAttendance(ctx, tx, userID, day)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO attendance (user_id, org_id, day, status, note) VALUES (?,?,?,?,?)",
				userID, orgID, day, string(status), note)
			return err
		case err != nil:
			return err
		case cur.CheckInAt != nil:
			return ErrConflict
		}
		_, err = tx.ExecContext(ctx, "UPDATE attendance SET status=?, note=? WHERE id=?", string(status), note, cur.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, day)
}

// Get returns the user's row for day or sql.ErrNoRows.
func (r *AttendanceRepo) Get(ctx context.Context, userID uint64, day string) (*model.Attendance, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE user_id=? AND day=?", userID, day)
	return scanAttendance(row)
}

// AttendanceQuery filters List.  UserID 0 lists the whole organization.
type AttendanceQuery struct {
	OrgID    string
	UserID   uint64
	From, To string
}

// List returns attendance rows ordered by day then user.
func (r *AttendanceRepo) List(ctx context.Context, q AttendanceQuery) ([]model.Attendance, error) {
	where := "org_id = ? AND day BETWEEN ? AND ?"
	args := []any{q.OrgID, q.From, q.To}
	if q.UserID != 0 {
		where += " AND user_id = ?"
		args = append(args, q.UserID)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE "+where+" ORDER BY day ASC, user_id ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func lockAttendance(ctx context.Context, tx *sql.Tx, userID uint64, day string) (*model.Attendance, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE user_id=? AND day=? FOR UPDATE", userID, day)
	return scanAttendance(row)
}

func scanAttendance(s scanner) (*model.Attendance, error) {
	var (
		a       model.Attendance
		day     time.Time
		status  string
		in, out sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.OrgID, &day, &status, &in, &out, &a.Note, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan attendance: %w", err)
	}
	a.Day = day.Format("2006-01-02")
	a.Status = model.AttendanceStatus(status)
	a.CheckInAt = timePtr(in)
	a.CheckOutAt = timePtr(out)
	return &a, nil
}
