package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/repository"
)

const dayLayout = "2006-01-02"

type AttendanceHandler struct {
    Store AttendanceStore
    Now   Clock
}

type absenceReq struct {
    Date   string `json:"date" validate:"required,datetime=2006-01-02"`
    Status string `json:"status" validate:"required,oneof=absent leave"`
    Note   string `json:"note" validate:"max=500"`
}

func today(now time.Time) string {
    return now.In(leadstatus.IST).Format(dayLayout)
}

// CheckIn marks the caller present today (IST).
func (h *AttendanceHandler) CheckIn(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.Now.now()

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    a, err := h.Store.CheckIn(ctx, id.UserID, id.OrgID, today(now), now)
    if err != nil {
        if errors.Is(err, repository.ErrAlreadyCheckedIn) {
            return conflict(c, "already checked in today")
        }
        return internalError(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// CheckOut closes today's attendance.
func (h *AttendanceHandler) CheckOut(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.Now.now()

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    a, err := h.Store.CheckOut(ctx, id.UserID, today(now), now)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrNotCheckedIn):
            return conflict(c, "not checked in today")
        case errors.Is(err, repository.ErrAlreadyCheckedOut):
            return conflict(c, "already checked out today")
        }
        return internalError(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// Absence records an absence or leave day for the caller.
func (h *AttendanceHandler) Absence(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    var req absenceReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    a, err := h.Store.MarkAbsence(ctx, id.UserID, id.OrgID, req.Date, model.AttendanceStatus(req.Status), req.Note)
    if err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return conflict(c, "already checked in on that day")
        }
        return internalError(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// List returns attendance between from and to (IST days, inclusive,
// default the current month).  Salespeople only see their own rows.
func (h *AttendanceHandler) List(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    now := h.Now.now()

    q := repository.AttendanceQuery{
        OrgID: id.OrgID,
        From:  leadstatus.MonthStart(now).In(leadstatus.IST).Format(dayLayout),
        To:    today(now),
    }
    var errs []FieldError
    if v := c.QueryParam("from"); v != "" {
        if _, ok := parseDay(v); !ok {
            errs = append(errs, FieldError{Field: "from", Message: "must be a YYYY-MM-DD date"})
        }
        q.From = v
    }
    if v := c.QueryParam("to"); v != "" {
        if _, ok := parseDay(v); !ok {
            errs = append(errs, FieldError{Field: "to", Message: "must be a YYYY-MM-DD date"})
        }
        q.To = v
    }
    if len(errs) == 0 {
        from, _ := parseDay(q.From)
        to, _ := parseDay(q.To)
        switch {
        case from.After(to):
            errs = append(errs, FieldError{Field: "from", Message: "must not be after to"})
        case to.Sub(from) > 366*24*time.Hour:
            errs = append(errs, FieldError{Field: "to", Message: "range must be at most one year"})
        }
    }
    if v := c.QueryParam("userId"); v != "" {
        uid, err := strconv.ParseUint(v, 10, 64)
        if err != nil || uid == 0 {
            errs = append(errs, FieldError{Field: "userId", Message: "must be a positive integer"})
        }
        q.UserID = uid
    }
    if len(errs) > 0 {
        return validationError(c, "invalid query parameters", errs...)
    }
    if !id.Role.SeesWholeOrg() {
        if q.UserID != 0 && q.UserID != id.UserID {
            return forbidden(c, "salespeople can only view their own attendance")
        }
        q.UserID = id.UserID
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    rows, err := h.Store.List(ctx, q)
    if err != nil {
        return internalError(c, err)
    }
    if rows == nil {
        rows = []model.Attendance{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rows, "from": q.From, "to": q.To})
}
