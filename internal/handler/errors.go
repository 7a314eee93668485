package handler

import (
    "net/http"

    "github.com/getsentry/sentry-go"
    sentryecho "github.com/getsentry/sentry-go/echo"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog/log"
)

// FieldError describes one rejected input field.
type FieldError struct {
    Field   string `json:"field"`
    Message string `json:"message"`
}

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
    Error   string       `json:"error"`
    Message string       `json:"message"`
    Fields  []FieldError `json:"fields,omitempty"`
}

func validationError(c echo.Context, msg string, fields ...FieldError) error {
    return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: msg, Fields: fields})
}

func unauthorized(c echo.Context, msg string) error {
    return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: msg})
}

func forbidden(c echo.Context, msg string) error {
    return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: msg})
}

func notFound(c echo.Context, msg string) error {
    return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: msg})
}

func conflict(c echo.Context, msg string) error {
    return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: msg})
}

func tooManyRequests(c echo.Context, msg string) error {
    return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too_many_requests", Message: msg})
}

func deliveryFailed(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "delivery_failed", Message: msg})
}

// internalError logs err with the request route, reports it to Sentry when
// configured and answers with a generic 500.
func internalError(c echo.Context, err error) error {
    log.Error().Err(err).
        Str("method", c.Request().Method).
        Str("route", c.Path()).
        Msg("internal error")
    if hub := sentryecho.GetHubFromContext(c); hub != nil {
        hub.CaptureException(err)
    } else if sentry.CurrentHub().Client() != nil {
        sentry.CaptureException(err)
    }
    return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal server error"})
}
