package model

import (
    "strings"
    "time"
)

// LeadStatus is the pipeline stage of a lead.  It is the only stored
// status of a lead; the coarse OPEN/INPROCESS/WON/LOST buckets are derived
// from it with Coarse().
type LeadStatus string

const (
    LeadStatusNew                LeadStatus = "newlead"
    LeadStatusInProcess          LeadStatus = "inprocess"
    LeadStatusSiteVisit          LeadStatus = "sitevisit"
    LeadStatusSiteVisitCompleted LeadStatus = "sitevisitcompleted"
    LeadStatusEstimateSent       LeadStatus = "estimatesent"
    LeadStatusWon                LeadStatus = "leadwon"
    LeadStatusLost               LeadStatus = "leadlost"
)

// LeadStatuses lists every pipeline stage in pipeline order.
var LeadStatuses = []LeadStatus{
    LeadStatusNew,
    LeadStatusInProcess,
    LeadStatusSiteVisit,
    LeadStatusSiteVisitCompleted,
    LeadStatusEstimateSent,
    LeadStatusWon,
    LeadStatusLost,
}

// Valid reports whether s is a known pipeline stage.
func (s LeadStatus) Valid() bool {
    for _, v := range LeadStatuses {
        if s == v {
            return true
        }
    }
    return false
}

// Coarse projects the pipeline stage onto the coarse reporting bucket.
func (s LeadStatus) Coarse() CoarseStatus {
    switch s {
    case LeadStatusNew:
        return CoarseOpen
    case LeadStatusWon:
        return CoarseWon
    case LeadStatusLost:
        return CoarseLost
    default:
        return CoarseInProcess
    }
}

// ParseLeadStatus folds case and surrounding whitespace.  The second
// return value is false for unknown stages.
func ParseLeadStatus(raw string) (LeadStatus, bool) {
    s := LeadStatus(strings.ToLower(strings.TrimSpace(raw)))
    return s, s.Valid()
}

// CoarseStatus is the reporting bucket used by KPIs and the listing filter.
type CoarseStatus string

const (
    CoarseOpen      CoarseStatus = "OPEN"
    CoarseInProcess CoarseStatus = "INPROCESS"
    CoarseWon       CoarseStatus = "WON"
    CoarseLost      CoarseStatus = "LOST"
)

// Members returns the pipeline stages that fall into the bucket.
func (c CoarseStatus) Members() []LeadStatus {
    var out []LeadStatus
    for _, s := range LeadStatuses {
        if s.Coarse() == c {
            out = append(out, s)
        }
    }
    return out
}

// ParseCoarseStatus accepts OPEN, INPROCESS, WON and LOST in any case.
func ParseCoarseStatus(raw string) (CoarseStatus, bool) {
    c := CoarseStatus(strings.ToUpper(strings.TrimSpace(raw)))
    switch c {
    case CoarseOpen, CoarseInProcess, CoarseWon, CoarseLost:
        return c, true
    }
    return "", false
}

// CallStatus is the derived contact-action classification of a lead.
type CallStatus string

const (
    CallStatusNone     CallStatus = ""
    CallStatusUpcoming CallStatus = "upcoming"
    CallStatusOverdue  CallStatus = "overdue"
    CallStatusFollowup CallStatus = "followup"
)

// Priority ranks leads for the sales team.
type Priority string

const (
    PriorityHigh   Priority = "high"
    PriorityMedium Priority = "medium"
    PriorityLow    Priority = "low"
)

// Lead is the canonical, fully typed lead record.  Repositories produce it
// and every downstream consumer (handlers, the status engine, exports and
// the digest job) reads this shape only.  Optional dates are nil when
// unknown; FormSubmissionDate always carries a value (it defaults to the
// creation time).
type Lead struct {
    ID          uint64 `json:"id"`          // leads.id
    OrgID       string `json:"orgId"`       // leads.org_id
    CreatedByID uint64 `json:"createdById"` // leads.created_by_id

    Name     string `json:"name"`
    Email    string `json:"email,omitempty"`
    Phone    string `json:"phone,omitempty"`
    AltPhone string `json:"altPhone,omitempty"`
    Company  string `json:"company,omitempty"`

    Address string `json:"address,omitempty"`
    City    string `json:"city,omitempty"`
    State   string `json:"state,omitempty"`
    Pincode string `json:"pincode,omitempty"`

    RoofArea          *float64 `json:"roofArea,omitempty"`          // square feet
    MonthlyBill       *float64 `json:"monthlyBill,omitempty"`       // rupees
    EnergyRequirement *float64 `json:"energyRequirement,omitempty"` // kW
    RoofType          string   `json:"roofType,omitempty"`
    PropertyType      string   `json:"propertyType,omitempty"`

    LeadSource             string   `json:"leadSource,omitempty"`
    Budget                 string   `json:"budget,omitempty"`
    Timeline               string   `json:"timeline,omitempty"`
    Priority               Priority `json:"priority"`
    Notes                  string   `json:"notes,omitempty"`
    PreferredContactTime   string   `json:"preferredContactTime,omitempty"`
    PreferredContactMethod string   `json:"preferredContactMethod,omitempty"`

    LeadStatus         LeadStatus `json:"leadStatus"`
    CallStatus         CallStatus `json:"callStatus"`
    DaysOverdue        int        `json:"daysOverdue,omitempty"`
    SiteVisitDate      *time.Time `json:"siteVisitDate,omitempty"`
    FormSubmissionDate time.Time  `json:"formSubmissionDate"`
    LastContactDate    *time.Time `json:"lastContactDate,omitempty"`
    NextFollowUpDate   *time.Time `json:"nextFollowUpDate,omitempty"`

    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// LeadPatch carries a partial update.  Nil fields are left untouched.  The
// Clear* flags null out the corresponding optional date.
type LeadPatch struct {
    Name                   *string
    Email                  *string
    Phone                  *string
    AltPhone               *string
    Company                *string
    Address                *string
    City                   *string
    State                  *string
    Pincode                *string
    RoofArea               *float64
    MonthlyBill            *float64
    EnergyRequirement      *float64
    RoofType               *string
    PropertyType           *string
    LeadSource             *string
    Budget                 *string
    Timeline               *string
    Priority               *Priority
    Notes                  *string
    PreferredContactTime   *string
    PreferredContactMethod *string
    LeadStatus             *LeadStatus
    SiteVisitDate          *time.Time
    LastContactDate        *time.Time
    NextFollowUpDate       *time.Time
    ClearNextFollowUp      bool
    ClearSiteVisit         bool
}

// Empty reports whether the patch changes nothing.
func (p LeadPatch) Empty() bool {
    return p == LeadPatch{}
}

// LeadHit is a compact search result.
type LeadHit struct {
    ID         uint64     `json:"id"`
    Name       string     `json:"name"`
    Email      string     `json:"email,omitempty"`
    Phone      string     `json:"phone,omitempty"`
    City       string     `json:"city,omitempty"`
    LeadStatus LeadStatus `json:"leadStatus"`
    CreatedAt  time.Time  `json:"createdAt"`
}

// ApplyTo copies the set fields of p onto l.  Clear flags win over a value
// supplied for the same field.  LastContactDate only moves forward.
func (p LeadPatch) ApplyTo(l *Lead) {
    setStr := func(dst *string, src *string) {
        if src != nil {
            *dst = *src
        }
    }
    setStr(&l.Name, p.Name)
    setStr(&l.Email, p.Email)
    setStr(&l.Phone, p.Phone)
    setStr(&l.AltPhone, p.AltPhone)
    setStr(&l.Company, p.Company)
    setStr(&l.Address, p.Address)
    setStr(&l.City, p.City)
    setStr(&l.State, p.State)
    setStr(&l.Pincode, p.Pincode)
    setStr(&l.RoofType, p.RoofType)
    setStr(&l.PropertyType, p.PropertyType)
    setStr(&l.LeadSource, p.LeadSource)
    setStr(&l.Budget, p.Budget)
    setStr(&l.Timeline, p.Timeline)
    setStr(&l.Notes, p.Notes)
    setStr(&l.PreferredContactTime, p.PreferredContactTime)
    setStr(&l.PreferredContactMethod, p.PreferredContactMethod)

    if p.RoofArea != nil {
        l.RoofArea = p.RoofArea
    }
    if p.MonthlyBill != nil {
        l.MonthlyBill = p.MonthlyBill
    }
    if p.EnergyRequirement != nil {
        l.EnergyRequirement = p.EnergyRequirement
    }
    if p.Priority != nil {
        l.Priority = *p.Priority
    }
    if p.LeadStatus != nil {
        l.LeadStatus = *p.LeadStatus
    }
    if p.LastContactDate != nil && (l.LastContactDate == nil || p.LastContactDate.After(*l.LastContactDate)) {
        l.LastContactDate = p.LastContactDate
    }
    if p.SiteVisitDate != nil {
        l.SiteVisitDate = p.SiteVisitDate
    }
    if p.NextFollowUpDate != nil {
        l.NextFollowUpDate = p.NextFollowUpDate
    }
    if p.ClearSiteVisit {
        l.SiteVisitDate = nil
    }
    if p.ClearNextFollowUp {
        l.NextFollowUpDate = nil
    }
}
