package model

import "time"

// CallLog records a single contact attempt against a lead.  Rows are
// append-only: they are never updated and only disappear together with
// their lead.
type CallLog struct {
    ID              uint64    `json:"id"`              // call_logs.id
    LeadID          uint64    `json:"leadId"`          // call_logs.lead_id
    UserID          uint64    `json:"userId"`          // call_logs.user_id
    CalledAt        time.Time `json:"calledAt"`        // call_logs.called_at
    DurationMinutes uint32    `json:"durationMinutes"` // call_logs.duration_minutes
    Notes           string    `json:"notes,omitempty"` // call_logs.notes
    Action          string    `json:"action,omitempty"`
    CreatedAt       time.Time `json:"createdAt"`
}
