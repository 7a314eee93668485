package model

import "time"

// OTPChannel is the delivery side channel of a one-time code.
type OTPChannel string

const (
    OTPChannelEmail OTPChannel = "email"
    OTPChannelSMS   OTPChannel = "sms"
)

// OTPPurpose scopes a code to the flow that requested it.
type OTPPurpose string

const (
    OTPPurposeVerify OTPPurpose = "verify"
    OTPPurposeReset  OTPPurpose = "reset"
)

// Otp is a one-time verification code.  Only the bcrypt hash of the code is
// stored.  Codes are superseded (consumed) when a newer code is issued for
// the same target and purpose, consumed on successful verification and
// otherwise expire by timestamp; rows are never deleted.
//
// Fields:
//  Target    - normalized email address or E.164 phone number.
//  Channel   - email or sms.
//  Purpose   - verify or reset.
//  CodeHash  - bcrypt hash of the six digit code.
//  ExpiresAt - instant after which the code is rejected.
//  Consumed  - set once verified or superseded.
//  Attempts  - number of verification attempts so far.
type Otp struct {
    ID        uint64     // otps.id
    Target    string     // otps.target
    Channel   OTPChannel // otps.channel
    Purpose   OTPPurpose // otps.purpose
    CodeHash  string     // otps.code_hash
    ExpiresAt time.Time  // otps.expires_at
    Consumed  bool       // otps.consumed
    Attempts  uint32     // otps.attempts
    CreatedAt time.Time  // otps.created_at
}

// Expired reports whether the code can no longer be used at now.
func (o Otp) Expired(now time.Time) bool {
    return !now.Before(o.ExpiresAt)
}
