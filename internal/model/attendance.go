package model

import "time"

// AttendanceStatus is the day status of an operator.
type AttendanceStatus string

const (
    AttendancePresent AttendanceStatus = "present"
    AttendanceAbsent  AttendanceStatus = "absent"
    AttendanceLeave   AttendanceStatus = "leave"
)

// Attendance is one row per user per IST calendar day.  Day holds the
// date as "YYYY-MM-DD".
type Attendance struct {
    ID         uint64           `json:"id"`
    UserID     uint64           `json:"userId"`
    OrgID      string           `json:"orgId"`
    Day        string           `json:"day"`
    Status     AttendanceStatus `json:"status"`
    CheckInAt  *time.Time       `json:"checkInAt,omitempty"`
    CheckOutAt *time.Time       `json:"checkOutAt,omitempty"`
    Note       string           `json:"note,omitempty"`
    UpdatedAt  time.Time        `json:"updatedAt"`
}
