package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/leadstatus"
	"github.com/iliyamo/solar-crm/internal/model"
)

// leadColumnNames lists the leads table columns in scan order.
var leadColumnNames = []string{
	"id", "org_id", "created_by_id",
	"name", "email", "phone", "alt_phone", "company",
	"address", "city", "state", "pincode",
	"roof_area", "monthly_bill", "energy_requirement", "roof_type", "property_type",
	"lead_source", "budget", "timeline", "priority", "notes",
	"preferred_contact_time", "preferred_contact_method",
	"lead_status", "call_status",
	"site_visit_date", "form_submission_date", "last_contact_date", "next_follow_up_date",
	"created_at", "updated_at",
}

// mutableLeadColumns are written by both insert and update.
var mutableLeadColumns = leadColumnNames[3:30]

var leadColumns = strings.Join(leadColumnNames, ", ")

// LeadRepo manages persistence for leads.  Every read and write is scoped
// by organization; a lead of another organization behaves exactly like a
// missing one.
type LeadRepo struct {
	db *sql.DB
}

// NewLeadRepo constructs a LeadRepo with the given DB handle.
func NewLeadRepo(db *sql.DB) *LeadRepo {
	return &LeadRepo{db: db}
}

// DB exposes the underlying sql.DB.
func (r *LeadRepo) DB() *sql.DB {
	return r.db
}

// Create inserts l and bumps the creator's dashboard counter in the same
// transaction.  The caller sets OrgID, CreatedByID, timestamps and the
// classified CallStatus; l.ID is assigned on success.
func (r *LeadRepo) Create(ctx context.Context, l *model.Lead) error {
	cols := append([]string{"org_id", "created_by_id"}, mutableLeadColumns...)
	cols = append(cols, "created_at", "updated_at")
	q := "INSERT INTO leads (" + strings.Join(cols, ", ") + ") VALUES (?" + strings.Repeat(",?", len(cols)-1) + ")"

	args := append([]any{l.OrgID, l.CreatedByID}, mutableLeadArgs(l)...)
	args = append(args, l.CreatedAt.UTC(), l.UpdatedAt.UTC())

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("insert lead: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(id)
		if err := bumpNewLeads(ctx, tx, l.CreatedByID, l.OrgID); err != nil {
			return fmt.Errorf("bump dashboard: %w", err)
		}
		return nil
	})
}

// GetByID returns the lead with id in orgID or ErrLeadNotFound.
func (r *LeadRepo) GetByID(ctx context.Context, orgID string, id uint64) (*model.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+leadColumns+" FROM leads WHERE id=? AND org_id=?", id, orgID)
	return scanLead(row)
}

// Update applies patch to the lead, reclassifies it at now and stores the
// result.  When onlyOwner is non-zero the lead must have been created by
// that user, otherwise ErrForbidden is returned.
func (r *LeadRepo) Update(ctx context.Context, orgID string, id uint64, onlyOwner uint64, patch model.LeadPatch, now time.Time) (*model.Lead, error) {
	var out *model.Lead
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := lockLead(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if onlyOwner != 0 && l.CreatedByID != onlyOwner {
			return ErrForbidden
		}
		patch.ApplyTo(l)
		if err := saveLead(ctx, tx, l, now); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

// Delete removes the lead and its call logs in one transaction.
func (r *LeadRepo) Delete(ctx context.Context, orgID string, id uint64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockLead(ctx, tx, orgID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM call_logs WHERE lead_id=?", id); err != nil {
			return fmt.Errorf("delete call logs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM leads WHERE id=? AND org_id=?", id, orgID); err != nil {
			return fmt.Errorf("delete lead: %w", err)
		}
		return nil
	})
}

// Search returns up to limit leads whose name, email, phone or city
// contains term, newest first.
func (r *LeadRepo) Search(ctx context.Context, orgID string, term string, limit int) ([]model.LeadHit, error) {
	like := containsPattern(term)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, phone, city, lead_status, created_at
		FROM leads
		WHERE org_id = ?
		  AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(city) LIKE ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		orgID, like, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.LeadHit, 0, limit)
	for rows.Next() {
		var (
			h      model.LeadHit
			status string
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Email, &h.Phone, &h.City, &status, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.LeadStatus = model.LeadStatus(status)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Scope narrows aggregate queries to an organization and optionally to the
// leads one user created.
type Scope struct {
	OrgID     string
	CreatedBy uint64
}

func (s Scope) where() (string, []any) {
	if s.CreatedBy != 0 {
		return "org_id = ? AND created_by_id = ?", []any{s.OrgID, s.CreatedBy}
	}
	return "org_id = ?", []any{s.OrgID}
}

// CountKPIs computes the lead KPIs of scope with IST day and week
// boundaries relative to now.
func (r *LeadRepo) CountKPIs(ctx context.Context, scope Scope, now time.Time) (leadstatus.KPIs, error) {
	dayStart, dayEnd := leadstatus.DayBounds(now)
	weekStart, weekEnd := leadstatus.WeekBounds(now)
	cond, args := scope.where()
	q := `SELECT COUNT(*),
		COALESCE(SUM(created_at BETWEEN ? AND ?), 0),
		COALESCE(SUM(created_at BETWEEN ? AND ?), 0),
		COALESCE(SUM(lead_status = ?), 0),
		COALESCE(SUM(lead_status = ?), 0)
		FROM leads WHERE ` + cond
	all := append([]any{dayStart, dayEnd, weekStart, weekEnd, string(model.LeadStatusNew), string(model.LeadStatusWon)}, args...)

	var total, today, week, open, won int64
	if err := r.db.QueryRowContext(ctx, q, all...).Scan(&total, &today, &week, &open, &won); err != nil {
		return leadstatus.KPIs{}, err
	}
	return leadstatus.NewKPIs(total, today, week, open, won), nil
}

// MonthCount is the number of leads created in one IST month.
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// MonthlyCounts returns the total number of leads in scope together with
// the count for each of months.
func (r *LeadRepo) MonthlyCounts(ctx context.Context, scope Scope, months []leadstatus.Month) (int64, []MonthCount, error) {
	cond, scopeArgs := scope.where()
	var (
		sel  strings.Builder
		args []any
	)
	sel.WriteString("SELECT COUNT(*)")
	for _, m := range months {
		sel.WriteString(", COALESCE(SUM(created_at >= ? AND created_at < ?), 0)")
		args = append(args, m.Start, m.End)
	}
	sel.WriteString(" FROM leads WHERE " + cond)
	args = append(args, scopeArgs...)

	var total int64
	counts := make([]int64, len(months))
	dest := []any{&total}
	for i := range counts {
		dest = append(dest, &counts[i])
	}
	if err := r.db.QueryRowContext(ctx, sel.String(), args...).Scan(dest...); err != nil {
		return 0, nil, err
	}
	out := make([]MonthCount, len(months))
	for i, m := range months {
		out[i] = MonthCount{Month: m.Label, Count: counts[i]}
	}
	return total, out, nil
}

// CountByCallStatus tallies the leads of scope per call status as of now.
// The predicates mirror leadstatus.Classify so stale stored call_status
// values never leak into the counts.
func (r *LeadRepo) CountByCallStatus(ctx context.Context, scope Scope, now time.Time) (leadstatus.Summary, error) {
	cond, scopeArgs := scope.where()
	up, upArgs := callStatusPredicate(model.CallStatusUpcoming, now)
	over, overArgs := callStatusPredicate(model.CallStatusOverdue, now)
	none, noneArgs := callStatusPredicate(model.CallStatusNone, now)
	q := "SELECT COALESCE(SUM(" + up + "),0), COALESCE(SUM(" + over + "),0), COALESCE(SUM(" + none + "),0) FROM leads WHERE " + cond
	args := append(append(append(upArgs, overArgs...), noneArgs...), scopeArgs...)

	var s leadstatus.Summary
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&s.Upcoming, &s.Overdue, &s.None)
	return s, err
}

// ListOverdue returns overdue leads of scope ordered by their oldest
// contact reference.  An empty OrgID lists across all organizations.
// Callers rank the result with leadstatus.RankOverdue.
func (r *LeadRepo) ListOverdue(ctx context.Context, scope Scope, now time.Time, limit int) ([]model.Lead, error) {
	pred, args := callStatusPredicate(model.CallStatusOverdue, now)
	where := []string{pred}
	if scope.OrgID != "" {
		cond, scopeArgs := scope.where()
		where = append(where, cond)
		args = append(args, scopeArgs...)
	}
	q := "SELECT " + leadColumns + " FROM leads WHERE " + strings.Join(where, " AND ") +
		" ORDER BY COALESCE(last_contact_date, form_submission_date) ASC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows, limit)
}

// lockLead reads the lead FOR UPDATE inside tx.
func lockLead(ctx context.Context, tx *sql.Tx, orgID string, id uint64) (*model.Lead, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+leadColumns+" FROM leads WHERE id=? AND org_id=? FOR UPDATE", id, orgID)
	return scanLead(row)
}

// saveLead reclassifies l at now and writes every mutable column.
func saveLead(ctx context.Context, tx *sql.Tx, l *model.Lead, now time.Time) error {
	leadstatus.Apply(l, now)
	l.UpdatedAt = now.UTC()
	sets := make([]string, 0, len(mutableLeadColumns)+1)
	for _, c := range mutableLeadColumns {
		sets = append(sets, c+"=?")
	}
	sets = append(sets, "updated_at=?")
	args := append(mutableLeadArgs(l), l.UpdatedAt, l.ID, l.OrgID)
	if _, err := tx.ExecContext(ctx,
		"UPDATE leads SET "+strings.Join(sets, ", ")+" WHERE id=? AND org_id=?", args...); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func mutableLeadArgs(l *model.Lead) []any {
	return []any{
		l.Name, l.Email, l.Phone, l.AltPhone, l.Company,
		l.Address, l.City, l.State, l.Pincode,
		l.RoofArea, l.MonthlyBill, l.EnergyRequirement, l.RoofType, l.PropertyType,
		l.LeadSource, l.Budget, l.Timeline, string(l.Priority), l.Notes,
		l.PreferredContactTime, l.PreferredContactMethod,
		string(l.LeadStatus), string(l.CallStatus),
		utcPtr(l.SiteVisitDate), l.FormSubmissionDate.UTC(), utcPtr(l.LastContactDate), utcPtr(l.NextFollowUpDate),
	}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func scanLead(s scanner) (*model.Lead, error) {
	var (
		l                               model.Lead
		roofArea, monthlyBill, energy   sql.NullFloat64
		notes                           sql.NullString
		priority, leadStatus, callStat  string
		siteVisit, lastContact, nextFup sql.NullTime
	)
	err := s.Scan(
		&l.ID, &l.OrgID, &l.CreatedByID,
		&l.Name, &l.Email, &l.Phone, &l.AltPhone, &l.Company,
		&l.Address, &l.City, &l.State, &l.Pincode,
		&roofArea, &monthlyBill, &energy, &l.RoofType, &l.PropertyType,
		&l.LeadSource, &l.Budget, &l.Timeline, &priority, &notes,
		&l.PreferredContactTime, &l.PreferredContactMethod,
		&leadStatus, &callStat,
		&siteVisit, &l.FormSubmissionDate, &lastContact, &nextFup,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	l.RoofArea = floatPtr(roofArea)
	l.MonthlyBill = floatPtr(monthlyBill)
	l.EnergyRequirement = floatPtr(energy)
	l.Notes = notes.String
	l.Priority = model.Priority(priority)
	l.LeadStatus = model.LeadStatus(leadStatus)
	l.CallStatus = model.CallStatus(callStat)
	l.SiteVisitDate = timePtr(siteVisit)
	l.LastContactDate = timePtr(lastContact)
	l.NextFollowUpDate = timePtr(nextFup)
	return &l, nil
}

func scanLeads(rows *sql.Rows, capHint int) ([]model.Lead, error) {
	out := make([]model.Lead, 0, capHint)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
