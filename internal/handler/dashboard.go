package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
)

const (
    topOverdue     = 10
    overdueScanCap = 500
)

type DashboardHandler struct {
    Leads      LeadStore
    Dashboards DashboardStore
    Now        Clock
}

// DashboardResponse is the body of GET /dashboard.
type DashboardResponse struct {
    Scope      string             `json:"scope"` // "own" or "org"
    KPIs       leadstatus.KPIs    `json:"kpis"`
    NewLeads   uint64             `json:"newLeads"`
    CallStatus leadstatus.Summary `json:"callStatus"`
    TopOverdue []model.Lead       `json:"topOverdue"`
    AsOf       time.Time          `json:"asOf"`
}

// Get builds the caller's dashboard.  Salespeople see their own leads,
// managers and general users the whole organization.
func (h *DashboardHandler) Get(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.Now.now()
    scope := roleScope(id)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    kpis, err := h.Leads.CountKPIs(ctx, scope, now)
    if err != nil {
        return internalError(c, err)
    }
    summary, err := h.Leads.CountByCallStatus(ctx, scope, now)
    if err != nil {
        return internalError(c, err)
    }

    var newLeads uint64
    if id.Role.SeesWholeOrg() {
        newLeads, err = h.Dashboards.SumByOrg(ctx, id.OrgID)
    } else {
        var d model.Dashboard
        d, err = h.Dashboards.Get(ctx, id.UserID)
        newLeads = d.NewLeads
    }
    if err != nil {
        return internalError(c, err)
    }

    overdue, err := h.Leads.ListOverdue(ctx, scope, now, overdueScanCap)
    if err != nil {
        return internalError(c, err)
    }
    ranked := leadstatus.RankOverdue(overdue, now)
    if len(ranked) > topOverdue {
        ranked = ranked[:topOverdue]
    }

    resp := DashboardResponse{
        Scope:      "own",
        KPIs:       kpis,
        NewLeads:   newLeads,
        CallStatus: summary,
        TopOverdue: ranked,
        AsOf:       now,
    }
    if scope.CreatedBy == 0 {
        resp.Scope = "org"
    }
    return c.JSON(http.StatusOK, resp)
}
