package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/model"
)

const identityKey = "identity"

// Identity is the authenticated caller, taken from the session token.
type Identity struct {
    UserID    uint64
    Email     string
    Role      model.Role
    OrgID     string
    TokenID   string // jti, used to revoke the session on logout
    ExpiresAt time.Time
}

// SetIdentity stores id on the request context.  JWTAuth calls it; tests
// use it to fake a session.
func SetIdentity(c echo.Context, id Identity) {
    c.Set(identityKey, id)
    c.Set("user_id", strconv.FormatUint(id.UserID, 10))
    c.Set("role", string(id.Role))
}

// IdentityFrom returns the caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (Identity, bool) {
    id, ok := c.Get(identityKey).(Identity)
    return id, ok
}

// currentUserID returns the caller's user id, or "anon".
func currentUserID(c echo.Context) string {
    if id, ok := IdentityFrom(c); ok {
        return strconv.FormatUint(id.UserID, 10)
    }
    return "anon"
}

func currentOrgID(c echo.Context) string {
    if id, ok := IdentityFrom(c); ok {
        return id.OrgID
    }
    return "-"
}

// deny writes the uniform error body used across the API.
func deny(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func unauthorized(c echo.Context, msg string) error {
    return deny(c, http.StatusUnauthorized, "unauthorized", msg)
}
