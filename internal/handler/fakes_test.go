package handler

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/queue"
    "github.com/iliyamo/solar-crm/internal/repository"
)

// memLeads is an in-memory LeadStore with the repository's semantics.
type memLeads struct {
    mu        sync.Mutex
    leads     map[uint64]*model.Lead
    nextID    uint64
    searchErr error
    lastQuery repository.LeadQuery
}

func newMemLeads() *memLeads { return &memLeads{leads: map[uint64]*model.Lead{}} }

func (m *memLeads) add(l model.Lead) *model.Lead {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.nextID++
    l.ID = m.nextID
    cp := l
    m.leads[l.ID] = &cp
    return &cp
}

func (m *memLeads) Create(_ context.Context, l *model.Lead) error {
    created := m.add(*l)
    l.ID = created.ID
    return nil
}

func (m *memLeads) GetByID(_ context.Context, orgID string, id uint64) (*model.Lead, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.leads[id]
    if !ok || l.OrgID != orgID {
        return nil, repository.ErrLeadNotFound
    }
    cp := *l
    return &cp, nil
}

func (m *memLeads) Update(_ context.Context, orgID string, id uint64, onlyOwner uint64, patch model.LeadPatch, now time.Time) (*model.Lead, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.leads[id]
    if !ok || l.OrgID != orgID {
        return nil, repository.ErrLeadNotFound
    }
    if onlyOwner != 0 && l.CreatedByID != onlyOwner {
        return nil, repository.ErrForbidden
    }
    patch.ApplyTo(l)
    l.UpdatedAt = now
    leadstatus.Apply(l, now)
    cp := *l
    return &cp, nil
}

func (m *memLeads) Delete(_ context.Context, orgID string, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.leads[id]
    if !ok || l.OrgID != orgID {
        return repository.ErrLeadNotFound
    }
    delete(m.leads, id)
    return nil
}

func (m *memLeads) inScope(s repository.Scope) []model.Lead {
    var out []model.Lead
    for _, l := range m.leads {
        if l.OrgID == s.OrgID && (s.CreatedBy == 0 || l.CreatedByID == s.CreatedBy) {
            out = append(out, *l)
        }
    }
    return out
}

func (m *memLeads) List(_ context.Context, q repository.LeadQuery) ([]model.Lead, int64, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.lastQuery = q
    var match []model.Lead
    for _, l := range m.inScope(q.Scope) {
        if len(q.Statuses) > 0 && !containsStatus(q.Statuses, l.LeadStatus) {
            continue
        }
        if q.CallStatus != nil && leadstatus.Classify(l, q.Now).CallStatus != *q.CallStatus {
            continue
        }
        if q.From != nil && l.CreatedAt.Before(*q.From) {
            continue
        }
        if q.To != nil && l.CreatedAt.After(*q.To) {
            continue
        }
        if q.Q != "" && !strings.Contains(strings.ToLower(l.Name+" "+l.Email+" "+l.Phone+" "+l.City), strings.ToLower(q.Q)) {
            continue
        }
        match = append(match, l)
    }
    sort.Slice(match, func(i, j int) bool {
        a, b := match[i], match[j]
        less := a.ID < b.ID
        if q.Sort == "name" && a.Name != b.Name {
            less = a.Name < b.Name
        } else if q.Sort != "name" && !a.CreatedAt.Equal(b.CreatedAt) {
            less = a.CreatedAt.Before(b.CreatedAt)
        }
        if q.Desc {
            return !less
        }
        return less
    })
    total := int64(len(match))
    start := (q.Page - 1) * q.PageSize
    if start >= len(match) {
        return []model.Lead{}, total, nil
    }
    end := start + q.PageSize
    if end > len(match) {
        end = len(match)
    }
    return match[start:end], total, nil
}

func containsStatus(set []model.LeadStatus, s model.LeadStatus) bool {
    for _, v := range set {
        if v == s {
            return true
        }
    }
    return false
}

func (m *memLeads) Search(_ context.Context, orgID string, term string, limit int) ([]model.LeadHit, error) {
    if m.searchErr != nil {
        return nil, m.searchErr
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.LeadHit
    for _, l := range m.inScope(repository.Scope{OrgID: orgID}) {
        if strings.Contains(strings.ToLower(l.Name), strings.ToLower(term)) && len(out) < limit {
            out = append(out, model.LeadHit{ID: l.ID, Name: l.Name, LeadStatus: l.LeadStatus, CreatedAt: l.CreatedAt})
        }
    }
    return out, nil
}

func (m *memLeads) CountKPIs(_ context.Context, s repository.Scope, now time.Time) (leadstatus.KPIs, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return leadstatus.Aggregate(m.inScope(s), now), nil
}

func (m *memLeads) MonthlyCounts(_ context.Context, s repository.Scope, months []leadstatus.Month) (int64, []repository.MonthCount, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    leads := m.inScope(s)
    out := make([]repository.MonthCount, len(months))
    for i, mo := range months {
        out[i].Month = mo.Label
        for _, l := range leads {
            if !l.CreatedAt.Before(mo.Start) && l.CreatedAt.Before(mo.End) {
                out[i].Count++
            }
        }
    }
    return int64(len(leads)), out, nil
}

func (m *memLeads) CountByCallStatus(_ context.Context, s repository.Scope, now time.Time) (leadstatus.Summary, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return leadstatus.Summarize(m.inScope(s), now), nil
}

func (m *memLeads) ListOverdue(_ context.Context, s repository.Scope, now time.Time, limit int) ([]model.Lead, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    var out []model.Lead
    for _, l := range m.inScope(s) {
        if leadstatus.Classify(l, now).CallStatus == model.CallStatusOverdue && len(out) < limit {
            out = append(out, l)
        }
    }
    return out, nil
}

type memCallLogs struct {
    leads *memLeads
    logs  []model.CallLog
}

func (m *memCallLogs) Append(ctx context.Context, orgID string, onlyOwner uint64, entry *model.CallLog, next *time.Time, now time.Time) (*model.Lead, error) {
    l, err := m.leads.GetByID(ctx, orgID, entry.LeadID)
    if err != nil {
        return nil, err
    }
    if onlyOwner != 0 && l.CreatedByID != onlyOwner {
        return nil, repository.ErrForbidden
    }
    entry.ID = uint64(len(m.logs) + 1)
    entry.CreatedAt = now
    m.logs = append(m.logs, *entry)
    patch := model.LeadPatch{NextFollowUpDate: next}
    if l.LastContactDate == nil || entry.CalledAt.After(*l.LastContactDate) {
        patch.LastContactDate = &entry.CalledAt
    }
    return m.leads.Update(ctx, orgID, entry.LeadID, 0, patch, now)
}

func (m *memCallLogs) ListByLead(_ context.Context, _ string, leadID uint64) ([]model.CallLog, error) {
    var out []model.CallLog
    for _, c := range m.logs {
        if c.LeadID == leadID {
            out = append(out, c)
        }
    }
    return out, nil
}

type recordingPublisher struct {
    mu     sync.Mutex
    events []queue.LeadEvent
    err    error
}

func (p *recordingPublisher) PublishLeadEvent(_ context.Context, ev queue.LeadEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, ev)
    return p.err
}

type memUsers struct {
    byID map[uint64]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]*model.User{}} }

func (m *memUsers) CreateWithDashboard(_ context.Context, u *model.User) error {
    for _, x := range m.byID {
        if x.Email == u.Email {
            return repository.ErrEmailExists
        }
    }
    u.ID = uint64(len(m.byID) + 1)
    cp := *u
    m.byID[u.ID] = &cp
    return nil
}

func (m *memUsers) OrgExists(_ context.Context, orgID string) (bool, error) {
    for _, u := range m.byID {
        if u.OrgID == orgID {
            return true, nil
        }
    }
    return false, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
    for _, u := range m.byID {
        if u.Email == strings.ToLower(strings.TrimSpace(email)) {
            cp := *u
            return &cp, nil
        }
    }
    return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
    if u, ok := m.byID[id]; ok {
        cp := *u
        return &cp, nil
    }
    return nil, repository.ErrUserNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
    u, ok := m.byID[id]
    if !ok {
        return repository.ErrUserNotFound
    }
    u.PasswordHash = hash
    return nil
}

type memTokens struct{ revoked map[string]bool }

func (m *memTokens) Revoke(_ context.Context, jti string, _ uint64, _ time.Time) error {
    m.revoked[jti] = true
    return nil
}

func (m *memTokens) IsRevoked(_ context.Context, jti string) (bool, error) {
    return m.revoked[jti], nil
}

type memDashboards struct {
    perUser map[uint64]uint64
}

func (m *memDashboards) Get(_ context.Context, userID uint64) (model.Dashboard, error) {
    return model.Dashboard{UserID: userID, NewLeads: m.perUser[userID]}, nil
}

func (m *memDashboards) SumByOrg(context.Context, string) (uint64, error) {
    var n uint64
    for _, v := range m.perUser {
        n += v
    }
    return n, nil
}

type memAttendance struct {
    rows    map[string]*model.Attendance
    lastQ   repository.AttendanceQuery
    failErr error
}

func (m *memAttendance) key(uid uint64, day string) string { return fmt.Sprintf("%s/%d", day, uid) }

func (m *memAttendance) CheckIn(_ context.Context, userID uint64, orgID, day string, at time.Time) (*model.Attendance, error) {
    k := m.key(userID, day)
    if a, ok := m.rows[k]; ok && a.CheckInAt != nil {
        return nil, repository.ErrAlreadyCheckedIn
    }
    a := &model.Attendance{UserID: userID, OrgID: orgID, Day: day, Status: model.AttendancePresent, CheckInAt: &at}
    m.rows[k] = a
    return a, nil
}

func (m *memAttendance) CheckOut(_ context.Context, userID uint64, day string, at time.Time) (*model.Attendance, error) {
    a, ok := m.rows[m.key(userID, day)]
    if !ok || a.CheckInAt == nil {
        return nil, repository.ErrNotCheckedIn
    }
    if a.CheckOutAt != nil {
        return nil, repository.ErrAlreadyCheckedOut
    }
    a.CheckOutAt = &at
    return a, nil
}

func (m *memAttendance) MarkAbsence(_ context.Context, userID uint64, orgID, day string, status model.AttendanceStatus, note string) (*model.Attendance, error) {
    k := m.key(userID, day)
    if a, ok := m.rows[k]; ok && a.CheckInAt != nil {
        return nil, repository.ErrConflict
    }
    a := &model.Attendance{UserID: userID, OrgID: orgID, Day: day, Status: status, Note: note}
    m.rows[k] = a
    return a, nil
}

func (m *memAttendance) List(_ context.Context, q repository.AttendanceQuery) ([]model.Attendance, error) {
    m.lastQ = q
    var out []model.Attendance
    for _, a := range m.rows {
        if a.OrgID == q.OrgID && (q.UserID == 0 || a.UserID == q.UserID) && a.Day >= q.From && a.Day <= q.To {
            out = append(out, *a)
        }
    }
    return out, nil
}

type stubOTP struct {
    sendErr   error
    verifyErr error
    target    string
}

func (s *stubOTP) Send(_ context.Context, _ model.OTPChannel, target string, _ model.OTPPurpose) (string, time.Time, error) {
    if s.sendErr != nil {
        return "", time.Time{}, s.sendErr
    }
    return strings.ToLower(target), time.Now().Add(10 * time.Minute), nil
}

func (s *stubOTP) Verify(_ context.Context, _ model.OTPChannel, target string, _ model.OTPPurpose, _ string) (string, error) {
    if s.verifyErr != nil {
        return "", s.verifyErr
    }
    if s.target != "" {
        return s.target, nil
    }
    return strings.ToLower(target), nil
}

var errBoom = errors.New("boom")

// withIdentity fakes the session JWTAuth would establish.
func withIdentity(id middleware.Identity) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            middleware.SetIdentity(c, id)
            return next(c)
        }
    }
}

func newEcho() *echo.Echo {
    e := echo.New()
    e.Validator = NewValidator()
    return e
}
