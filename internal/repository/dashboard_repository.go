package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/solar-crm/internal/model"
)

// DashboardRepo reads the per-user newLeads counters.  Increments happen in
// LeadRepo.Create, inside the lead insert transaction.
type DashboardRepo struct{ DB *sql.DB }

func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{DB: db} }

// Get returns the user's dashboard, or a zero counter when the row does
// not exist yet.
func (r *DashboardRepo) Get(ctx context.Context, userID uint64) (model.Dashboard, error) {
	d := model.Dashboard{UserID: userID}
	err := r.DB.QueryRowContext(ctx,
		"SELECT org_id, new_leads, updated_at FROM dashboards WHERE user_id=?", userID).
		Scan(&d.OrgID, &d.NewLeads, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d, nil
	}
	return d, err
}

// SumByOrg totals the newLeads counters of an organization.
func (r *DashboardRepo) SumByOrg(ctx context.Context, orgID string) (uint64, error) {
	var n uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(new_leads),0) FROM dashboards WHERE org_id=?", orgID).Scan(&n)
	return n, err
}

// bumpNewLeads upserts the counter row so leads created by users that
// predate dashboards still count.
func bumpNewLeads(ctx context.Context, tx *sql.Tx, userID uint64, orgID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO dashboards (user_id, org_id, new_leads) VALUES (?,?,1)
		 ON DUPLICATE KEY UPDATE new_leads = new_leads + 1`,
		userID, orgID)
	return err
}
