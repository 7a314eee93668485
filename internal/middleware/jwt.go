package middleware

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/utils"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "crm_session"

// RevocationChecker reports whether a token id was revoked at logout.
// *repository.TokenRepo satisfies it.
type RevocationChecker interface {
    IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth validates the session token from the Authorization header
// ("Bearer <token>") or the crm_session cookie and stores the caller's
// Identity on the context.  revoked may be nil.
func JWTAuth(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := TokenFromRequest(c)
            if raw == "" {
                return unauthorized(c, "missing session token")
            }
            claims, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                return unauthorized(c, "invalid token")
            }
            role := model.Role(claims.Role)
            if claims.UserID == 0 || claims.OrgID == "" || !role.Valid() {
                return unauthorized(c, "invalid claims")
            }
            if revoked != nil && claims.ID != "" {
                gone, err := revoked.IsRevoked(c.Request().Context(), claims.ID)
                if err != nil {
                    log.Error().Err(err).Msg("auth: revocation lookup failed")
                    return deny(c, http.StatusInternalServerError, "internal_error", "internal server error")
                }
                if gone {
                    return unauthorized(c, "session revoked")
                }
            }
            SetIdentity(c, Identity{
                UserID:    claims.UserID,
                Email:     claims.Email,
                Role:      role,
                OrgID:     claims.OrgID,
                TokenID:   claims.ID,
                ExpiresAt: claims.ExpiresAtTime(),
            })
            return next(c)
        }
    }
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(SessionCookie); err == nil {
        return ck.Value
    }
    return ""
}
