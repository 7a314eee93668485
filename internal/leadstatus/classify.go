package leadstatus

import (
	"sort"
	"time"

	"github.com/iliyamo/solar-crm/internal/model"
)

// Result is the derived call state of one lead.
type Result struct {
	CallStatus  model.CallStatus `json:"callStatus"`
	DaysOverdue int              `json:"daysOverdue"`
}

// Classify derives the call status of lead as seen at now.
//
// A follow-up scheduled for today is upcoming, one on an earlier day is
// overdue.  A lead without a follow-up is overdue unless it has been won.
// Anything else (a future follow-up, or a won lead with nothing scheduled)
// has no call status.
func Classify(lead model.Lead, now time.Time) Result {
	var status model.CallStatus
	switch next := lead.NextFollowUpDate; {
	case next != nil && SameDay(*next, now):
		status = model.CallStatusUpcoming
	case next != nil && StartOfDay(*next).Before(StartOfDay(now)):
		status = model.CallStatusOverdue
	case next == nil && lead.LeadStatus != model.LeadStatusWon:
		status = model.CallStatusOverdue
	default:
		status = model.CallStatusNone
	}
	res := Result{CallStatus: status}
	if status == model.CallStatusOverdue {
		res.DaysOverdue = DaysOverdue(lead, now)
	}
	return res
}

// DaysOverdue counts whole IST days since the last contact, or since the
// form submission when the lead was never contacted.  It never goes below
// zero and is zero when no reference date is known.
func DaysOverdue(lead model.Lead, now time.Time) int {
	var ref time.Time
	switch {
	case lead.LastContactDate != nil:
		ref = *lead.LastContactDate
	case !lead.FormSubmissionDate.IsZero():
		ref = lead.FormSubmissionDate
	default:
		ref = lead.CreatedAt
	}
	if ref.IsZero() {
		return 0
	}
	if d := DaysBetween(ref, now); d > 0 {
		return d
	}
	return 0
}

// Apply classifies lead and stores the result on it.
func Apply(lead *model.Lead, now time.Time) {
	res := Classify(*lead, now)
	lead.CallStatus = res.CallStatus
	lead.DaysOverdue = res.DaysOverdue
}

// ApplyAll classifies every lead in place.
func ApplyAll(leads []model.Lead, now time.Time) {
	for i := range leads {
		Apply(&leads[i], now)
	}
}

// Summary counts leads per call status.
type Summary struct {
	Upcoming int `json:"upcoming"`
	Overdue  int `json:"overdue"`
	Followup int `json:"followup"`
	None     int `json:"none"`
}

// Summarize classifies each lead at now and tallies the results.
func Summarize(leads []model.Lead, now time.Time) Summary {
	var s Summary
	for _, l := range leads {
		switch Classify(l, now).CallStatus {
		case model.CallStatusUpcoming:
			s.Upcoming++
		case model.CallStatusOverdue:
			s.Overdue++
		case model.CallStatusFollowup:
			s.Followup++
		default:
			s.None++
		}
	}
	return s
}

// RankOverdue returns the overdue leads, classified at now, ordered by
// DaysOverdue descending with ties broken by ascending id.  The input slice
// is not modified.
func RankOverdue(leads []model.Lead, now time.Time) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		Apply(&l, now)
		if l.CallStatus == model.CallStatusOverdue {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].ID < out[j].ID
	})
	return out
}
