package handler

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/metrics"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/queue"
    "github.com/iliyamo/solar-crm/internal/repository"
    "github.com/iliyamo/solar-crm/internal/utils"
)

// LeadHandler serves the /leads endpoints.
type LeadHandler struct {
    Leads    LeadStore
    CallLogs CallLogStore
    Events   EventPublisher
    Region   string // default phone region
    Now      Clock

    // AfterWrite runs once a write touching userID's leads has committed.
    // The router uses it to drop cached dashboards.
    AfterWrite func(ctx context.Context, userID uint64)
}

// leadFields are the intake and lifecycle fields shared by create and
// update.  Dates are IST dates or RFC 3339 instants; an empty string clears
// siteVisitDate and nextFollowUpDate and is ignored for lastContactDate.
type leadFields struct {
    Email                  *string  `json:"email" validate:"omitempty,email,max=191"`
    Phone                  *string  `json:"phone" validate:"omitempty,max=32"`
    AltPhone               *string  `json:"altPhone" validate:"omitempty,max=32"`
    Company                *string  `json:"company" validate:"omitempty,max=191"`
    Address                *string  `json:"address" validate:"omitempty,max=255"`
    City                   *string  `json:"city" validate:"omitempty,max=100"`
    State                  *string  `json:"state" validate:"omitempty,max=100"`
    Pincode                *string  `json:"pincode" validate:"omitempty,max=12"`
    RoofArea               *float64 `json:"roofArea" validate:"omitempty,gte=0"`
    MonthlyBill            *float64 `json:"monthlyBill" validate:"omitempty,gte=0"`
    EnergyRequirement      *float64 `json:"energyRequirement" validate:"omitempty,gte=0"`
    RoofType               *string  `json:"roofType" validate:"omitempty,max=50"`
    PropertyType           *string  `json:"propertyType" validate:"omitempty,max=50"`
    LeadSource             *string  `json:"leadSource" validate:"omitempty,max=50"`
    Budget                 *string  `json:"budget" validate:"omitempty,max=50"`
    Timeline               *string  `json:"timeline" validate:"omitempty,max=50"`
    Priority               *string  `json:"priority" validate:"omitempty,priority"`
    Notes                  *string  `json:"notes" validate:"omitempty,max=5000"`
    PreferredContactTime   *string  `json:"preferredContactTime" validate:"omitempty,max=50"`
    PreferredContactMethod *string  `json:"preferredContactMethod" validate:"omitempty,max=50"`
    LeadStatus             *string  `json:"leadStatus" validate:"omitempty,leadstatus"`
    SiteVisitDate          *string  `json:"siteVisitDate"`
    LastContactDate        *string  `json:"lastContactDate"`
    NextFollowUpDate       *string  `json:"nextFollowUpDate"`
}

type createLeadReq struct {
    Name string `json:"name" validate:"required,max=191"`
    leadFields
    FormSubmissionDate *string `json:"formSubmissionDate"`
}

type updateLeadReq struct {
    Name *string `json:"name" validate:"omitempty,min=1,max=191"`
    leadFields

    // derived, rejected when present
    CallStatus  json.RawMessage `json:"callStatus"`
    DaysOverdue json.RawMessage `json:"daysOverdue"`
}

func (h *LeadHandler) now() time.Time { return h.Now.now() }

// toPatch converts the request into a patch, collecting field errors for
// unparseable phone numbers and dates.
func (f leadFields) toPatch(region string) (model.LeadPatch, []FieldError) {
    var (
        p    model.LeadPatch
        errs []FieldError
    )
    p.Email = trimmed(f.Email)
    if p.Email != nil {
        e := utils.NormalizeEmail(*p.Email)
        p.Email = &e
    }
    for _, ph := range []struct {
        field string
        src   *string
        dst   **string
    }{
        {"phone", f.Phone, &p.Phone},
        {"altPhone", f.AltPhone, &p.AltPhone},
    } {
        v := trimmed(ph.src)
        if v == nil || *v == "" {
            *ph.dst = v
            continue
        }
        e164, err := utils.NormalizePhone(*v, region)
        if err != nil {
            errs = append(errs, FieldError{Field: ph.field, Message: "must be a valid phone number"})
            continue
        }
        *ph.dst = &e164
    }
    p.Company = trimmed(f.Company)
    p.Address = trimmed(f.Address)
    p.City = trimmed(f.City)
    p.State = trimmed(f.State)
    p.Pincode = trimmed(f.Pincode)
    p.RoofArea = f.RoofArea
    p.MonthlyBill = f.MonthlyBill
    p.EnergyRequirement = f.EnergyRequirement
    p.RoofType = trimmed(f.RoofType)
    p.PropertyType = trimmed(f.PropertyType)
    p.LeadSource = trimmed(f.LeadSource)
    p.Budget = trimmed(f.Budget)
    p.Timeline = trimmed(f.Timeline)
    p.Notes = f.Notes
    p.PreferredContactTime = trimmed(f.PreferredContactTime)
    p.PreferredContactMethod = trimmed(f.PreferredContactMethod)
    if f.Priority != nil {
        pr := model.Priority(strings.ToLower(*f.Priority))
        p.Priority = &pr
    }
    if f.LeadStatus != nil {
        s, _ := model.ParseLeadStatus(*f.LeadStatus)
        p.LeadStatus = &s
    }

    var bad bool
    if p.SiteVisitDate, p.ClearSiteVisit, bad = parseOptionalDate(f.SiteVisitDate); bad {
        errs = append(errs, FieldError{Field: "siteVisitDate", Message: "must be a date"})
    }
    if p.NextFollowUpDate, p.ClearNextFollowUp, bad = parseOptionalDate(f.NextFollowUpDate); bad {
        errs = append(errs, FieldError{Field: "nextFollowUpDate", Message: "must be a date"})
    }
    if p.LastContactDate, _, bad = parseOptionalDate(f.LastContactDate); bad {
        errs = append(errs, FieldError{Field: "lastContactDate", Message: "must be a date"})
    }
    return p, errs
}

// parseOptionalDate returns (nil, false, false) for an absent value,
// (nil, true, false) for "", the parsed date, or bad=true.
func parseOptionalDate(raw *string) (t *time.Time, clear bool, bad bool) {
    if raw == nil {
        return nil, false, false
    }
    s := strings.TrimSpace(*raw)
    if s == "" {
        return nil, true, false
    }
    if t = leadstatus.ParseDate(s); t == nil {
        return nil, false, true
    }
    return t, false, false
}

func trimmed(s *string) *string {
    if s == nil {
        return nil
    }
    v := strings.TrimSpace(*s)
    return &v
}

func leadIDParam(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}

// Create stores a new lead for the caller's organization.
func (h *LeadHandler) Create(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    var req createLeadReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    patch, errs := req.leadFields.toPatch(h.Region)
    formDate, _, bad := parseOptionalDate(req.FormSubmissionDate)
    if bad {
        errs = append(errs, FieldError{Field: "formSubmissionDate", Message: "must be a date"})
    }
    if len(errs) > 0 {
        return validationError(c, "request validation failed", errs...)
    }

    now := h.now()
    lead := &model.Lead{
        OrgID:       id.OrgID,
        CreatedByID: id.UserID,
        Name:        strings.TrimSpace(req.Name),
        Priority:    model.PriorityMedium,
        LeadStatus:  model.LeadStatusNew,
        CreatedAt:   now,
        UpdatedAt:   now,
    }
    patch.ApplyTo(lead)
    lead.FormSubmissionDate = now
    if formDate != nil {
        lead.FormSubmissionDate = *formDate
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    leadstatus.Apply(lead, now)
    if err := h.Leads.Create(ctx, lead); err != nil {
        return internalError(c, err)
    }
    metrics.LeadsCreated.WithLabelValues(metrics.SourceLabel(lead.LeadSource)).Inc()
    h.afterWrite(c, queue.LeadCreated, id, lead)
    return c.JSON(http.StatusCreated, lead)
}

// Get returns one lead of the caller's organization.
func (h *LeadHandler) Get(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    leadID, ok := leadIDParam(c)
    if !ok {
        return validationError(c, "invalid lead id", FieldError{Field: "id", Message: "must be a positive integer"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    lead, err := h.Leads.GetByID(ctx, id.OrgID, leadID)
    if err != nil {
        if errors.Is(err, repository.ErrLeadNotFound) {
            return notFound(c, "lead not found")
        }
        return internalError(c, err)
    }
    leadstatus.Apply(lead, h.now())
    return c.JSON(http.StatusOK, lead)
}

// Update applies a partial update.  Salespeople may only edit their own
// leads.
func (h *LeadHandler) Update(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    leadID, ok := leadIDParam(c)
    if !ok {
        return validationError(c, "invalid lead id", FieldError{Field: "id", Message: "must be a positive integer"})
    }
    var req updateLeadReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }
    var errs []FieldError
    if len(req.CallStatus) > 0 {
        errs = append(errs, FieldError{Field: "callStatus", Message: "is derived and cannot be set"})
    }
    if len(req.DaysOverdue) > 0 {
        errs = append(errs, FieldError{Field: "daysOverdue", Message: "is derived and cannot be set"})
    }
    patch, perrs := req.leadFields.toPatch(h.Region)
    errs = append(errs, perrs...)
    if req.Name != nil {
        n := strings.TrimSpace(*req.Name)
        if n == "" {
            errs = append(errs, FieldError{Field: "name", Message: "is required"})
        }
        patch.Name = &n
    }
    if len(errs) > 0 {
        return validationError(c, "request validation failed", errs...)
    }
    if patch.Empty() {
        return validationError(c, "no fields to update")
    }

    var onlyOwner uint64
    if !id.Role.SeesWholeOrg() {
        onlyOwner = id.UserID
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    now := h.now()
    lead, err := h.Leads.Update(ctx, id.OrgID, leadID, onlyOwner, patch, now)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrLeadNotFound):
            return notFound(c, "lead not found")
        case errors.Is(err, repository.ErrForbidden):
            return forbidden(c, "only the lead owner or a manager can edit this lead")
        }
        return internalError(c, err)
    }
    leadstatus.Apply(lead, now)
    h.afterWrite(c, queue.LeadUpdated, id, lead)
    return c.JSON(http.StatusOK, lead)
}

// Delete removes a lead and its call log.  Routed for managers only.
func (h *LeadHandler) Delete(c echo.Context) error {
    id, _ := middleware.IdentityFrom(c)
    leadID, ok := leadIDParam(c)
    if !ok {
        return validationError(c, "invalid lead id", FieldError{Field: "id", Message: "must be a positive integer"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    lead, err := h.Leads.GetByID(ctx, id.OrgID, leadID)
    if err == nil {
        err = h.Leads.Delete(ctx, id.OrgID, leadID)
    }
    if err != nil {
        if errors.Is(err, repository.ErrLeadNotFound) {
            return notFound(c, "lead not found")
        }
        return internalError(c, err)
    }
    h.afterWrite(c, queue.LeadDeleted, id, lead)
    return c.NoContent(http.StatusNoContent)
}

// afterWrite publishes the lead event and runs the AfterWrite hook.
// Neither affects the response.
func (h *LeadHandler) afterWrite(c echo.Context, typ string, who middleware.Identity, lead *model.Lead) {
    ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
    defer cancel()

    if h.Events != nil {
        ev := queue.LeadEvent{
            Type:       typ,
            OrgID:      lead.OrgID,
            UserID:     who.UserID,
            LeadID:     lead.ID,
            LeadName:   lead.Name,
            LeadStatus: string(lead.LeadStatus),
            CallStatus: string(lead.CallStatus),
            OccurredAt: h.now().UTC().Format(time.RFC3339),
        }
        if err := h.Events.PublishLeadEvent(ctx, ev); err != nil {
            log.Warn().Err(err).Str("type", typ).Uint64("lead_id", lead.ID).Msg("lead event not published")
        }
    }
    if h.AfterWrite != nil {
        h.AfterWrite(ctx, who.UserID)
        if lead.CreatedByID != who.UserID {
            h.AfterWrite(ctx, lead.CreatedByID)
        }
    }
}
