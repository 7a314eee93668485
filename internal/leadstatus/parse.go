package leadstatus

import (
	"strings"
	"time"

	"github.com/iliyamo/solar-crm/internal/model"
)

// Layouts without an explicit offset are read as IST wall clock.
var localLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseDate reads a loosely formatted date.  It accepts YYYY-MM-DD (IST
// midnight), RFC 3339 and "YYYY-MM-DD HH:MM:SS" (IST).  Empty or malformed
// input yields nil.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, IST); err == nil {
			return &t
		}
	}
	return nil
}

// RawLead is a lead-like record as it arrives from clients that have not
// been through validation, with every field optional and dates as strings.
type RawLead struct {
	ID                 uint64 `json:"id"`
	Name               string `json:"name"`
	LeadStatus         string `json:"leadStatus"`
	NextFollowUpDate   string `json:"nextFollowUpDate"`
	NextCallDate       string `json:"nextCallDate"`
	LastContactDate    string `json:"lastContactDate"`
	FormSubmissionDate string `json:"formSubmissionDate"`
	CreatedAt          string `json:"createdAt"`
}

// Normalize converts a RawLead into the canonical typed shape.  Unknown
// statuses fall back to newlead; unparseable dates are dropped.  The
// follow-up date is taken from nextFollowUpDate, else nextCallDate, and the
// submission date falls back to createdAt.
func Normalize(raw RawLead) model.Lead {
	status, ok := model.ParseLeadStatus(raw.LeadStatus)
	if !ok {
		status = model.LeadStatusNew
	}
	lead := model.Lead{
		ID:              raw.ID,
		Name:            strings.TrimSpace(raw.Name),
		LeadStatus:      status,
		LastContactDate: ParseDate(raw.LastContactDate),
	}
	lead.NextFollowUpDate = ParseDate(raw.NextFollowUpDate)
	if lead.NextFollowUpDate == nil {
		lead.NextFollowUpDate = ParseDate(raw.NextCallDate)
	}
	if t := ParseDate(raw.CreatedAt); t != nil {
		lead.CreatedAt = *t
	}
	if t := ParseDate(raw.FormSubmissionDate); t != nil {
		lead.FormSubmissionDate = *t
	} else {
		lead.FormSubmissionDate = lead.CreatedAt
	}
	return lead
}
