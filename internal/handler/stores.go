package handler

import (
    "context"
    "time"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/queue"
    "github.com/iliyamo/solar-crm/internal/repository"
)

// The interfaces below are what the handlers need from the repositories
// and services.  The concrete types in internal/repository and
// internal/service satisfy them; tests use in-memory fakes.

type LeadStore interface {
    Create(ctx context.Context, l *model.Lead) error
    GetByID(ctx context.Context, orgID string, id uint64) (*model.Lead, error)
    Update(ctx context.Context, orgID string, id uint64, onlyOwner uint64, patch model.LeadPatch, now time.Time) (*model.Lead, error)
    Delete(ctx context.Context, orgID string, id uint64) error
    List(ctx context.Context, q repository.LeadQuery) ([]model.Lead, int64, error)
    Search(ctx context.Context, orgID string, term string, limit int) ([]model.LeadHit, error)
    CountKPIs(ctx context.Context, scope repository.Scope, now time.Time) (leadstatus.KPIs, error)
    MonthlyCounts(ctx context.Context, scope repository.Scope, months []leadstatus.Month) (int64, []repository.MonthCount, error)
    CountByCallStatus(ctx context.Context, scope repository.Scope, now time.Time) (leadstatus.Summary, error)
    ListOverdue(ctx context.Context, scope repository.Scope, now time.Time, limit int) ([]model.Lead, error)
}

type CallLogStore interface {
    Append(ctx context.Context, orgID string, onlyOwner uint64, entry *model.CallLog, next *time.Time, now time.Time) (*model.Lead, error)
    ListByLead(ctx context.Context, orgID string, leadID uint64) ([]model.CallLog, error)
}

type UserStore interface {
    CreateWithDashboard(ctx context.Context, u *model.User) error
    OrgExists(ctx context.Context, orgID string) (bool, error)
    GetByEmail(ctx context.Context, email string) (*model.User, error)
    GetByID(ctx context.Context, id uint64) (*model.User, error)
    UpdatePassword(ctx context.Context, id uint64, hash string) error
}

type TokenStore interface {
    Revoke(ctx context.Context, jti string, userID uint64, exp time.Time) error
}

type DashboardStore interface {
    Get(ctx context.Context, userID uint64) (model.Dashboard, error)
    SumByOrg(ctx context.Context, orgID string) (uint64, error)
}

type AttendanceStore interface {
    CheckIn(ctx context.Context, userID uint64, orgID, day string, at time.Time) (*model.Attendance, error)
    CheckOut(ctx context.Context, userID uint64, day string, at time.Time) (*model.Attendance, error)
    MarkAbsence(ctx context.Context, userID uint64, orgID, day string, status model.AttendanceStatus, note string) (*model.Attendance, error)
    List(ctx context.Context, q repository.AttendanceQuery) ([]model.Attendance, error)
}

// EventPublisher receives lead domain events.  Failures are logged only.
type EventPublisher interface {
    PublishLeadEvent(ctx context.Context, ev queue.LeadEvent) error
}

// OTPIssuer is implemented by *service.OTPService.
type OTPIssuer interface {
    Send(ctx context.Context, channel model.OTPChannel, target string, purpose model.OTPPurpose) (string, time.Time, error)
    Verify(ctx context.Context, channel model.OTPChannel, target string, purpose model.OTPPurpose, code string) (string, error)
}

// Clock returns the current instant; handlers take it as a field so tests
// can pin IST day boundaries.
type Clock func() time.Time

func (f Clock) now() time.Time {
    if f == nil {
        return time.Now()
    }
    return f()
}
