// Package leadstatus derives the call status of a lead and the count based
// KPIs shown on dashboards.  Everything in this package is a pure function
// of its inputs and the supplied "now"; day bucketing always happens in
// India Standard Time regardless of the server's local zone.
package leadstatus

import "time"

// IST is the fixed +05:30 zone used for every day boundary.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const day = 24 * time.Hour

// StartOfDay returns IST midnight of the calendar day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.In(IST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// SameDay reports whether a and b fall on the same IST calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DaysBetween counts whole IST calendar days from a to b.  It is negative
// when b is on an earlier day than a.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)) / day)
}

// DayBounds returns the first and last instant of now's IST day as UTC.
func DayBounds(now time.Time) (time.Time, time.Time) {
	start := StartOfDay(now)
	return start.UTC(), start.Add(day - time.Millisecond).UTC()
}

// WeekBounds returns Monday 00:00:00.000 IST through Sunday 23:59:59.999 IST
// of the week containing now, as UTC instants.
func WeekBounds(now time.Time) (time.Time, time.Time) {
	start := StartOfDay(now)
	offset := (int(start.Weekday()) + 6) % 7 // days since Monday
	start = start.AddDate(0, 0, -offset)
	return start.UTC(), start.AddDate(0, 0, 7).Add(-time.Millisecond).UTC()
}

// MonthStart returns the first instant of now's IST month.
func MonthStart(now time.Time) time.Time {
	t := now.In(IST)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, IST)
}

// Month is one IST calendar month, bounded as a half-open UTC range.
type Month struct {
	Label string    `json:"month"` // "2006-01"
	Start time.Time `json:"-"`
	End   time.Time `json:"-"`
}

// LastMonths returns the n IST months ending with the current one, oldest
// first.
func LastMonths(now time.Time, n int) []Month {
	if n <= 0 {
		return nil
	}
	cur := MonthStart(now)
	out := make([]Month, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := cur.AddDate(0, -i, 0)
		out = append(out, Month{
			Label: start.Format("2006-01"),
			Start: start.UTC(),
			End:   start.AddDate(0, 1, 0).UTC(),
		})
	}
	return out
}
