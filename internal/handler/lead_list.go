package handler

import (
    "bytes"
    "context"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"
    "unicode/utf8"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/export"
    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/repository"
)

const (
    defaultPageSize = 20
    maxPageSize     = 200
    maxPage         = 100000
    maxExportRows   = 5000
    searchLimit     = 20
)

// Pagination describes one page of a listing.
type Pagination struct {
    Page       int   `json:"page"`
    PageSize   int   `json:"pageSize"`
    Total      int64 `json:"total"`
    TotalPages int   `json:"totalPages"`
    Count      int   `json:"count"`
    HasNext    bool  `json:"hasNext"`
    HasPrev    bool  `json:"hasPrev"`
}

// LeadListResponse is the body of GET /leads.
type LeadListResponse struct {
    Items      []model.Lead     `json:"items"`
    Pagination Pagination       `json:"pagination"`
    KPIs       *leadstatus.KPIs `json:"kpis,omitempty"`
}

func newPagination(page, size int, total int64, count int) Pagination {
    pages := int((total + int64(size) - 1) / int64(size))
    return Pagination{
        Page:       page,
        PageSize:   size,
        Total:      total,
        TotalPages: pages,
        Count:      count,
        HasNext:    page < pages,
        HasPrev:    page > 1,
    }
}

// listParams is the validated listing query string.
type listParams struct {
    Query       repository.LeadQuery
    IncludeKPIs bool
}

// parseListParams validates the listing parameters.  Out of range values
// are rejected, never clamped.
func parseListParams(c echo.Context, id middleware.Identity, now time.Time) (listParams, []FieldError) {
    var (
        errs []FieldError
        p    listParams
    )
    q := repository.LeadQuery{
        Scope:    repository.Scope{OrgID: id.OrgID},
        Sort:     "createdAt",
        Desc:     true,
        Page:     1,
        PageSize: defaultPageSize,
        Now:      now,
    }
    bad := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

    if v := c.QueryParam("page"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > maxPage {
            bad("page", fmt.Sprintf("must be an integer between 1 and %d", maxPage))
        } else {
            q.Page = n
        }
    }
    if v := c.QueryParam("pageSize"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > maxPageSize {
            bad("pageSize", fmt.Sprintf("must be an integer between 1 and %d", maxPageSize))
        } else {
            q.PageSize = n
        }
    }
    switch v := c.QueryParam("sort"); v {
    case "", "createdAt":
    case "name":
        q.Sort = "name"
    default:
        bad("sort", "must be one of [createdAt name]")
    }
    switch v := strings.ToLower(c.QueryParam("order")); v {
    case "", "desc":
    case "asc":
        q.Desc = false
    default:
        bad("order", "must be one of [asc desc]")
    }
    // Upper case names a coarse bucket ("INPROCESS"), anything else a
    // pipeline stage first ("inprocess").
    if v := strings.TrimSpace(c.QueryParam("status")); v != "" {
        if cs, ok := model.ParseCoarseStatus(v); ok && v == strings.ToUpper(v) {
            q.Statuses = cs.Members()
        } else if s, ok := model.ParseLeadStatus(v); ok {
            q.Statuses = []model.LeadStatus{s}
        } else if cs, ok := model.ParseCoarseStatus(v); ok {
            q.Statuses = cs.Members()
        } else {
            bad("status", "has an unknown value")
        }
    }
    if v := strings.ToLower(strings.TrimSpace(c.QueryParam("callStatus"))); v != "" {
        var cs model.CallStatus
        switch v {
        case "upcoming":
            cs = model.CallStatusUpcoming
        case "overdue":
            cs = model.CallStatusOverdue
        case "followup":
            cs = model.CallStatusFollowup
        case "none":
            cs = model.CallStatusNone
        default:
            bad("callStatus", "must be one of [upcoming overdue followup none]")
        }
        q.CallStatus = &cs
    }
    if v := c.QueryParam("dateFrom"); v != "" {
        if d, ok := parseDay(v); ok {
            q.From = &d
        } else {
            bad("dateFrom", "must be a YYYY-MM-DD date")
        }
    }
    if v := c.QueryParam("dateTo"); v != "" {
        if d, ok := parseDay(v); ok {
            end := d.Add(24*time.Hour - time.Millisecond)
            q.To = &end
        } else {
            bad("dateTo", "must be a YYYY-MM-DD date")
        }
    }
    if q.From != nil && q.To != nil && q.From.After(*q.To) {
        bad("dateFrom", "must not be after dateTo")
    }
    if v := strings.TrimSpace(c.QueryParam("q")); v != "" {
        if utf8.RuneCountInString(v) > 100 {
            bad("q", "must be at most 100 characters")
        }
        q.Q = v
    }
    if v := c.QueryParam("includeKpis"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil {
            bad("includeKpis", "must be a boolean")
        }
        p.IncludeKPIs = b
    }
    if v := c.QueryParam("mine"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil {
            bad("mine", "must be a boolean")
        } else if b {
            q.Scope.CreatedBy = id.UserID
        }
    }
    p.Query = q
    return p, errs
}

// parseDay reads a YYYY-MM-DD date as IST midnight.
func parseDay(s string) (time.Time, bool) {
    t, err := time.ParseInLocation("2006-01-02", s, leadstatus.IST)
    return t, err == nil
}

// List serves GET /leads.
func (h *LeadHandler) List(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.now()
    p, errs := parseListParams(c, id, now)
    if len(errs) > 0 {
        return validationError(c, "invalid query parameters", errs...)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    items, total, err := h.Leads.List(ctx, p.Query)
    if err != nil {
        return internalError(c, err)
    }
    leadstatus.ApplyAll(items, now)

    resp := LeadListResponse{
        Items:      items,
        Pagination: newPagination(p.Query.Page, p.Query.PageSize, total, len(items)),
    }
    if p.IncludeKPIs {
        k, err := h.Leads.CountKPIs(ctx, p.Query.Scope, now)
        if err != nil {
            return internalError(c, err)
        }
        resp.KPIs = &k
    }
    return c.JSON(http.StatusOK, resp)
}

// Search serves GET /leads/search?query=.  Queries shorter than two
// characters and store failures both yield an empty hit list.
func (h *LeadHandler) Search(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    term := strings.TrimSpace(c.QueryParam("query"))
    if term == "" {
        term = strings.TrimSpace(c.QueryParam("q"))
    }
    empty := echo.Map{"hits": []model.LeadHit{}}
    if utf8.RuneCountInString(term) < 2 {
        return c.JSON(http.StatusOK, empty)
    }
    if utf8.RuneCountInString(term) > 100 {
        return validationError(c, "invalid query parameters", FieldError{Field: "query", Message: "must be at most 100 characters"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
    defer cancel()

    hits, err := h.Leads.Search(ctx, id.OrgID, term, searchLimit)
    if err != nil {
        log.Warn().Err(err).Msg("lead search failed")
        return c.JSON(http.StatusOK, empty)
    }
    if hits == nil {
        hits = []model.LeadHit{}
    }
    return c.JSON(http.StatusOK, echo.Map{"hits": hits})
}

// Metrics serves GET /leads/metrics: lead counts for the caller's scope,
// this month and each of the last six IST months.
func (h *LeadHandler) Metrics(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.now()

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    months := leadstatus.LastMonths(now, 6)
    total, counts, err := h.Leads.MonthlyCounts(ctx, roleScope(id), months)
    if err != nil {
        return internalError(c, err)
    }
    var thisMonth int64
    if len(counts) > 0 {
        thisMonth = counts[len(counts)-1].Count
    }
    return c.JSON(http.StatusOK, echo.Map{
        "total":     total,
        "thisMonth": thisMonth,
        "months":    counts,
    })
}

// StatusPreview classifies a loosely typed lead body without storing it.
func (h *LeadHandler) StatusPreview(c echo.Context) error {
    var raw leadstatus.RawLead
    if err := c.Bind(&raw); err != nil {
        return validationError(c, "invalid request body")
    }
    now := h.now()
    lead := leadstatus.Normalize(raw)
    res := leadstatus.Classify(lead, now)
    return c.JSON(http.StatusOK, echo.Map{
        "leadStatus":       lead.LeadStatus,
        "stage":            lead.LeadStatus.Coarse(),
        "callStatus":       res.CallStatus,
        "daysOverdue":      res.DaysOverdue,
        "nextFollowUpDate": lead.NextFollowUpDate,
        "evaluatedAt":      now,
    })
}

// Export streams the filtered listing as an XLSX workbook, at most
// maxExportRows rows.  Paging parameters are ignored.
func (h *LeadHandler) Export(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.now()
    p, errs := parseListParams(c, id, now)
    if len(errs) > 0 {
        return validationError(c, "invalid query parameters", errs...)
    }
    q := p.Query
    q.Page, q.PageSize = 1, maxExportRows

    ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
    defer cancel()

    leads, total, err := h.Leads.List(ctx, q)
    if err != nil {
        return internalError(c, err)
    }
    var buf bytes.Buffer
    if err := export.WriteLeads(&buf, leads, now); err != nil {
        return internalError(c, err)
    }
    name := fmt.Sprintf("leads-%s.xlsx", now.In(leadstatus.IST).Format("20060102-1504"))
    c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
    c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
    return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

// roleScope is the dashboard scope of the caller: own leads for
// salespeople, the whole organization otherwise.
func roleScope(id middleware.Identity) repository.Scope {
    if id.Role.SeesWholeOrg() {
        return repository.Scope{OrgID: id.OrgID}
    }
    return repository.Scope{OrgID: id.OrgID, CreatedBy: id.UserID}
}
