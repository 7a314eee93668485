package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/solar-crm/internal/leadstatus"
	"github.com/iliyamo/solar-crm/internal/model"
)

// LeadQuery defines filters, ordering and pagination for listing leads.
// Values are assumed validated by the caller; Page and PageSize are used
// as given.
type LeadQuery struct {
	Scope
	// Q matches a substring of name, email, phone, city, state or company.
	Q          string
	Statuses   []model.LeadStatus
	CallStatus *model.CallStatus // evaluated at Now
	From, To   *time.Time        // inclusive bounds on created_at
	Sort       string            // "createdAt" or "name"
	Desc       bool
	Page       int
	PageSize   int
	Now        time.Time
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
}

func (q LeadQuery) where() (string, []any) {
	cond, args := q.Scope.where()
	where := []string{cond}

	if term := strings.TrimSpace(q.Q); term != "" {
		like := containsPattern(term)
		where = append(where, `(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?
			OR LOWER(city) LIKE ? OR LOWER(state) LIKE ? OR LOWER(company) LIKE ?)`)
		args = append(args, like, like, like, like, like, like)
	}
	if len(q.Statuses) > 0 {
		where = append(where, "lead_status IN (?"+strings.Repeat(",?", len(q.Statuses)-1)+")")
		for _, s := range q.Statuses {
			args = append(args, string(s))
		}
	}
	if q.CallStatus != nil {
		pred, predArgs := callStatusPredicate(*q.CallStatus, q.Now)
		where = append(where, pred)
		args = append(args, predArgs...)
	}
	if q.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, q.To.UTC())
	}
	return strings.Join(where, " AND "), args
}

func (q LeadQuery) orderBy() string {
	col, ok := sortColumns[q.Sort]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}

// List returns one page of leads matching q together with the total number
// of matches.  Ties on the sort key are broken by id so paging is stable.
func (r *LeadRepo) List(ctx context.Context, q LeadQuery) ([]model.Lead, int64, error) {
	cond, args := q.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Lead{}, 0, nil
	}

	dataSQL := "SELECT " + leadColumns + " FROM leads WHERE " + cond +
		" ORDER BY " + q.orderBy() + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := scanLeads(rows, q.PageSize)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// callStatusPredicate renders the SQL condition matching leads that
// leadstatus.Classify would put in cs at now.
func callStatusPredicate(cs model.CallStatus, now time.Time) (string, []any) {
	dayStart, dayEnd := leadstatus.DayBounds(now)
	won := string(model.LeadStatusWon)
	switch cs {
	case model.CallStatusUpcoming:
		return "(next_follow_up_date BETWEEN ? AND ?)", []any{dayStart, dayEnd}
	case model.CallStatusOverdue:
		return "(next_follow_up_date < ? OR (next_follow_up_date IS NULL AND lead_status <> ?))", []any{dayStart, won}
	case model.CallStatusNone:
		return "(next_follow_up_date > ? OR (next_follow_up_date IS NULL AND lead_status = ?))", []any{dayEnd, won}
	default:
		return "(1=0)", nil
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
