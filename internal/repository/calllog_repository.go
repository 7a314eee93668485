package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/model"
)

// CallLogRepo persists append-only call logs.
type CallLogRepo struct{ DB *sql.DB }

func NewCallLogRepo(db *sql.DB) *CallLogRepo { return &CallLogRepo{DB: db} }

// Append stores entry against its lead and, in the same transaction,
// advances the lead's lastContactDate to entry.CalledAt when that is newer
// and sets nextFollowUpDate when next is given.  The lead is reclassified
// at now.  entry.ID and entry.CreatedAt are set on success and the updated
// lead is returned.  When onlyOwner is non-zero the lead must have been
// created by that user, otherwise ErrForbidden is returned.
func (r *CallLogRepo) Append(ctx context.Context, orgID string, onlyOwner uint64, entry *model.CallLog, next *time.Time, now time.Time) (*model.Lead, error) {
	var lead *model.Lead
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		l, err := lockLead(ctx, tx, orgID, entry.LeadID)
		if err != nil {
			return err
		}
		if onlyOwner != 0 && l.CreatedByID != onlyOwner {
			return ErrForbidden
		}
		entry.CreatedAt = now.UTC()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO call_logs (lead_id, user_id, called_at, duration_minutes, notes, action, created_at) VALUES (?,?,?,?,?,?,?)",
			entry.LeadID, entry.UserID, entry.CalledAt.UTC(), entry.DurationMinutes, entry.Notes, entry.Action, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert call log: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		entry.ID = uint64(id)

		if l.LastContactDate == nil || entry.CalledAt.After(*l.LastContactDate) {
			called := entry.CalledAt.UTC()
			l.LastContactDate = &called
		}
		if next != nil {
			n := next.UTC()
			l.NextFollowUpDate = &n
		}
		if err := saveLead(ctx, tx, l, now); err != nil {
			return err
		}
		lead = l
		return nil
	})
	return lead, err
}

// ListByLead returns the lead's call logs, most recent call first.  The
// caller is expected to have checked the lead belongs to orgID; the join
// keeps the query tenant scoped regardless.
func (r *CallLogRepo) ListByLead(ctx context.Context, orgID string, leadID uint64) ([]model.CallLog, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.lead_id, c.user_id, c.called_at, c.duration_minutes, c.notes, c.action, c.created_at
		FROM call_logs c
		JOIN leads l ON l.id = c.lead_id
		WHERE c.lead_id = ? AND l.org_id = ?
		ORDER BY c.called_at DESC, c.id DESC`,
		leadID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CallLog{}
	for rows.Next() {
		var (
			c     model.CallLog
			notes sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.LeadID, &c.UserID, &c.CalledAt, &c.DurationMinutes, &notes, &c.Action, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Notes = notes.String
		out = append(out, c)
	}
	return out, rows.Err()
}
