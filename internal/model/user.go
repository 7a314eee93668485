package model

import "time"

// Role is the CRM operator role carried in the session token.
type Role string

const (
    RoleSalesperson Role = "salesperson"
    RoleManager     Role = "manager"
    RoleGeneral     Role = "general"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
    switch r {
    case RoleSalesperson, RoleManager, RoleGeneral:
        return true
    }
    return false
}

// SeesWholeOrg reports whether the role's dashboards and listings cover
// every lead of the organization rather than only the caller's own.
func (r Role) SeesWholeOrg() bool {
    return r == RoleManager || r == RoleGeneral
}

// User represents a CRM operator as stored in the `users` table.
//
// Fields:
//  ID           - primary key identifier of the user.
//  OrgID        - tenant the user belongs to.
//  Name         - display name.
//  Email        - unique email address (lower-cased).
//  Phone        - optional unique phone number in E.164 form.
//  PasswordHash - bcrypt hashed password.
//  Role         - salesperson, manager or general.
//  IsActive     - whether the account may log in.
type User struct {
    ID           uint64    // users.id
    OrgID        string    // users.org_id
    Name         string    // users.name
    Email        string    // users.email
    Phone        *string   // users.phone (nullable)
    PasswordHash string    // users.password_hash
    Role         Role      // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RevokedToken models an entry in the `revoked_tokens` table.  Session
// tokens are stateless JWTs; logging out records the token's jti here
// until the token would have expired anyway.
type RevokedToken struct {
    JTI       string    // revoked_tokens.jti
    UserID    uint64    // revoked_tokens.user_id
    ExpiresAt time.Time // revoked_tokens.expires_at
    RevokedAt time.Time // revoked_tokens.revoked_at
}
