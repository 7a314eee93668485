package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/queue"
    "github.com/iliyamo/solar-crm/internal/repository"
)

type callLogReq struct {
    CalledAt         string  `json:"calledAt"`
    DurationMinutes  uint32  `json:"durationMinutes" validate:"lte=600"`
    Notes            string  `json:"notes" validate:"max=5000"`
    Action           string  `json:"action" validate:"max=100"`
    NextFollowUpDate *string `json:"nextFollowUpDate"`
}

// AppendCallLog records a call against a lead.  The lead's last contact
// moves forward to the call time and, when given, its next follow-up is
// replaced, all in one transaction.  Salespeople may only log calls on
// their own leads.
func (h *LeadHandler) AppendCallLog(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    leadID, ok := leadIDParam(c)
    if !ok {
        return validationError(c, "invalid lead id", FieldError{Field: "id", Message: "must be a positive integer"})
    }
    var req callLogReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    now := h.now()
    calledAt := now
    if req.CalledAt != "" {
        t := leadstatus.ParseDate(req.CalledAt)
        if t == nil {
            return validationError(c, "request validation failed", FieldError{Field: "calledAt", Message: "must be a date"})
        }
        if t.After(now.Add(5 * time.Minute)) {
            return validationError(c, "request validation failed", FieldError{Field: "calledAt", Message: "must not be in the future"})
        }
        calledAt = *t
    }
    next, _, bad := parseOptionalDate(req.NextFollowUpDate)
    if bad {
        return validationError(c, "request validation failed", FieldError{Field: "nextFollowUpDate", Message: "must be a date"})
    }

    entry := &model.CallLog{
        LeadID:          leadID,
        UserID:          id.UserID,
        CalledAt:        calledAt,
        DurationMinutes: req.DurationMinutes,
        Notes:           req.Notes,
        Action:          req.Action,
    }

    var onlyOwner uint64
    if !id.Role.SeesWholeOrg() {
        onlyOwner = id.UserID
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    lead, err := h.CallLogs.Append(ctx, id.OrgID, onlyOwner, entry, next, now)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrLeadNotFound):
            return notFound(c, "lead not found")
        case errors.Is(err, repository.ErrForbidden):
            return forbidden(c, "only the lead owner or a manager can log calls on this lead")
        }
        return internalError(c, err)
    }
    leadstatus.Apply(lead, now)
    h.afterWrite(c, queue.LeadCallLogged, id, lead)
    return c.JSON(http.StatusCreated, echo.Map{"callLog": entry, "lead": lead})
}

// ListCallLogs returns a lead's calls, newest first.
func (h *LeadHandler) ListCallLogs(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    leadID, ok := leadIDParam(c)
    if !ok {
        return validationError(c, "invalid lead id", FieldError{Field: "id", Message: "must be a positive integer"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Leads.GetByID(ctx, id.OrgID, leadID); err != nil {
        if errors.Is(err, repository.ErrLeadNotFound) {
            return notFound(c, "lead not found")
        }
        return internalError(c, err)
    }
    logs, err := h.CallLogs.ListByLead(ctx, id.OrgID, leadID)
    if err != nil {
        return internalError(c, err)
    }
    if logs == nil {
        logs = []model.CallLog{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": logs})
}
