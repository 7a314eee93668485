package handler

import (
    "net/http"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
)

func TestDashboardScope(t *testing.T) {
    f := newLeadFixture()
    today := fixedNow
    lastWeek := fixedNow.AddDate(0, 0, -6)
    f.seed("org-1", 7, time.Hour, func(l *model.Lead) { l.NextFollowUpDate = &today })
    f.seed("org-1", 7, 5*24*time.Hour)
    f.seed("org-1", 7, 9*24*time.Hour, func(l *model.Lead) { l.LastContactDate = &lastWeek })
    f.seed("org-1", 9, 20*24*time.Hour)
    f.seed("org-1", 9, time.Hour, func(l *model.Lead) { l.LeadStatus = model.LeadStatusWon })
    f.seed("org-2", 7, 30*24*time.Hour)

    h := &DashboardHandler{
        Leads:      f.leads,
        Dashboards: &memDashboards{perUser: map[uint64]uint64{7: 3, 9: 2}},
        Now:        func() time.Time { return fixedNow },
    }
    get := func(id middleware.Identity) DashboardResponse {
        e := newEcho()
        e.GET("/dashboard", h.Get, withIdentity(id))
        rec := do(e, http.MethodGet, "/dashboard", "")
        require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
        return decode[DashboardResponse](t, rec)
    }

    own := get(seller)
    assert.Equal(t, "own", own.Scope)
    assert.Equal(t, int64(3), own.KPIs.Total)
    assert.Equal(t, uint64(3), own.NewLeads)
    assert.Equal(t, 1, own.CallStatus.Upcoming)
    assert.Equal(t, 2, own.CallStatus.Overdue)
    require.Len(t, own.TopOverdue, 2)
    assert.Equal(t, 6, own.TopOverdue[0].DaysOverdue)
    assert.Equal(t, 5, own.TopOverdue[1].DaysOverdue)

    org := get(manager)
    assert.Equal(t, "org", org.Scope)
    assert.Equal(t, int64(5), org.KPIs.Total)
    assert.Equal(t, int64(1), org.KPIs.Won)
    assert.Equal(t, 20.0, org.KPIs.ConversionRate)
    assert.Equal(t, uint64(5), org.NewLeads)
    assert.Equal(t, 1, org.CallStatus.None)
    require.Len(t, org.TopOverdue, 3)
    assert.Equal(t, 20, org.TopOverdue[0].DaysOverdue)
    assert.True(t, org.AsOf.Equal(fixedNow))
}

func TestAttendance(t *testing.T) {
    store := &memAttendance{rows: map[string]*model.Attendance{}}
    h := &AttendanceHandler{Store: store, Now: func() time.Time { return fixedNow }}

    routes := func(id middleware.Identity) func(method, path, body string) int {
        e := newEcho()
        g := e.Group("/attendance", withIdentity(id))
        g.POST("/check-in", h.CheckIn)
        g.POST("/check-out", h.CheckOut)
        g.POST("/absence", h.Absence)
        g.GET("", h.List)
        return func(method, path, body string) int {
            return do(e, method, path, body).Code
        }
    }
    call := routes(seller)

    assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/attendance/check-out", ""))
    assert.Equal(t, http.StatusOK, call(http.MethodPost, "/attendance/check-in", ""))
    assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/attendance/check-in", ""))
    assert.Equal(t, http.StatusOK, call(http.MethodPost, "/attendance/check-out", ""))
    assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/attendance/check-out", ""))
    require.NotNil(t, store.rows["2026-03-18/7"])
    assert.Equal(t, model.AttendancePresent, store.rows["2026-03-18/7"].Status)

    assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/attendance/absence", `{"date":"2026-03-18","status":"leave"}`))
    assert.Equal(t, http.StatusOK, call(http.MethodPost, "/attendance/absence", `{"date":"2026-03-19","status":"leave","note":"family"}`))
    assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/attendance/absence", `{"date":"19/03/2026","status":"leave"}`))
    assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/attendance/absence", `{"date":"2026-03-20","status":"present"}`))

    t.Run("listing defaults to the current month", func(t *testing.T) {
        assert.Equal(t, http.StatusOK, call(http.MethodGet, "/attendance", ""))
        assert.Equal(t, "2026-03-01", store.lastQ.From)
        assert.Equal(t, "2026-03-18", store.lastQ.To)
        assert.Equal(t, seller.UserID, store.lastQ.UserID)
    })
    t.Run("salespeople only see themselves", func(t *testing.T) {
        assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/attendance?userId=9", ""))
        assert.Equal(t, http.StatusOK, call(http.MethodGet, "/attendance?userId=7", ""))
    })
    t.Run("managers see the organization", func(t *testing.T) {
        mgr := routes(manager)
        assert.Equal(t, http.StatusOK, mgr(http.MethodGet, "/attendance?from=2026-03-01&to=2026-03-31", ""))
        assert.Zero(t, store.lastQ.UserID)
        assert.Equal(t, http.StatusOK, mgr(http.MethodGet, "/attendance?userId=9", ""))
        assert.Equal(t, uint64(9), store.lastQ.UserID)
    })
    t.Run("bad ranges", func(t *testing.T) {
        mgr := routes(manager)
        assert.Equal(t, http.StatusBadRequest, mgr(http.MethodGet, "/attendance?from=2026-04-01&to=2026-03-01", ""))
        assert.Equal(t, http.StatusBadRequest, mgr(http.MethodGet, "/attendance?from=2024-01-01&to=2026-03-01", ""))
        assert.Equal(t, http.StatusBadRequest, mgr(http.MethodGet, "/attendance?from=yesterday", ""))
    })
}
