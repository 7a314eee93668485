package leadstatus

import (
	"math"
	"time"

	"github.com/iliyamo/solar-crm/internal/model"
)

// KPIs is the count based summary attached to listings and dashboards.
type KPIs struct {
	Total          int64   `json:"total"`
	Today          int64   `json:"today"`
	ThisWeek       int64   `json:"thisWeek"`
	Open           int64   `json:"open"`
	Won            int64   `json:"won"`
	ConversionRate float64 `json:"conversionRate"`
}

// ConversionRate is won/total as a percentage rounded to one decimal.  It is
// exactly 0 when total is 0.
func ConversionRate(won, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(won)/float64(total)*1000) / 10
}

// NewKPIs assembles a KPIs value from raw counts.
func NewKPIs(total, today, thisWeek, open, won int64) KPIs {
	return KPIs{
		Total:          total,
		Today:          today,
		ThisWeek:       thisWeek,
		Open:           open,
		Won:            won,
		ConversionRate: ConversionRate(won, total),
	}
}

// Aggregate computes KPIs over an in-memory set of leads using the same
// IST day and week boundaries the SQL counters use.
func Aggregate(leads []model.Lead, now time.Time) KPIs {
	dayStart, dayEnd := DayBounds(now)
	weekStart, weekEnd := WeekBounds(now)
	var total, today, week, open, won int64
	for _, l := range leads {
		total++
		if within(l.CreatedAt, dayStart, dayEnd) {
			today++
		}
		if within(l.CreatedAt, weekStart, weekEnd) {
			week++
		}
		switch l.LeadStatus.Coarse() {
		case model.CoarseOpen:
			open++
		case model.CoarseWon:
			won++
		}
	}
	return NewKPIs(total, today, week, open, won)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
