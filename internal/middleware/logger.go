package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// RequestLogger writes one structured line per request.
func RequestLogger() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            status := c.Response().Status

            var ev *zerolog.Event
            switch {
            case status >= 500:
                ev = log.Error()
            case status >= 400:
                ev = log.Warn()
            default:
                ev = log.Info()
            }
            ev.Str("method", c.Request().Method).
                Str("route", c.Path()).
                Str("uri", c.Request().RequestURI).
                Int("status", status).
                Dur("latency", time.Since(start)).
                Str("ip", c.RealIP()).
                Str("user_id", currentUserID(c)).
                Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
                Err(err).
                Msg("request")
            return nil
        }
    }
}
