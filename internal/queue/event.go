// Package queue defines the message payloads exchanged over RabbitMQ and
// the consumer loop run by cmd/notifier.
package queue

const (
    // LeadEventsQueue carries LeadEvent messages.
    LeadEventsQueue = "crm.lead.events"
    // SMSQueue carries SMSMessage messages for the SMS gateway.
    SMSQueue = "crm.notifications.sms"
)

// Lead event types.
const (
    LeadCreated    = "lead.created"
    LeadUpdated    = "lead.updated"
    LeadDeleted    = "lead.deleted"
    LeadCallLogged = "lead.call_logged"
    DigestOverdue  = "digest.overdue"
)

// LeadEvent is published whenever a lead changes and, with Type
// DigestOverdue, once per owner by the daily digest.  It carries enough
// for the activity log without querying the primary database.
type LeadEvent struct {
    Type       string        `json:"type"`
    OrgID      string        `json:"orgId"`
    UserID     uint64        `json:"userId"`
    LeadID     uint64        `json:"leadId,omitempty"`
    LeadName   string        `json:"leadName,omitempty"`
    LeadStatus string        `json:"leadStatus,omitempty"`
    CallStatus string        `json:"callStatus,omitempty"`
    Overdue    []OverdueItem `json:"overdue,omitempty"`
    OccurredAt string        `json:"occurredAt"` // RFC 3339
}

// OverdueItem is one ranked entry of a digest.
type OverdueItem struct {
    LeadID      uint64 `json:"leadId"`
    Name        string `json:"name"`
    Phone       string `json:"phone,omitempty"`
    DaysOverdue int    `json:"daysOverdue"`
}

// SMSMessage hands a text message to the SMS gateway.
type SMSMessage struct {
    To      string `json:"to"` // E.164
    Body    string `json:"body"`
    Purpose string `json:"purpose,omitempty"`
    SentAt  string `json:"sentAt"`
}
