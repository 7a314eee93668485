package model

import "time"

// Dashboard is the per-user KPI accumulator stored in `dashboards`.  The
// NewLeads counter is bumped in the same transaction that inserts a lead,
// so it only drifts from the true count when leads are deleted.
type Dashboard struct {
    UserID    uint64    `json:"userId"`   // dashboards.user_id
    OrgID     string    `json:"orgId"`    // dashboards.org_id
    NewLeads  uint64    `json:"newLeads"` // dashboards.new_leads
    UpdatedAt time.Time `json:"updatedAt"`
}
