package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/model"
)

// RequireRole aborts with 403 unless the caller, as set by JWTAuth, has one
// of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    allowed := make(map[model.Role]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, ok := IdentityFrom(c)
            if !ok {
                return unauthorized(c, "missing session")
            }
            if !allowed[id.Role] {
                return deny(c, http.StatusForbidden, "forbidden", "insufficient role")
            }
            return next(c)
        }
    }
}
