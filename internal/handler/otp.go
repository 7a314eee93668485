package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/service"
)

type OTPHandler struct {
    OTP OTPIssuer
}

func NewOTPHandler(otp OTPIssuer) *OTPHandler { return &OTPHandler{OTP: otp} }

type sendOTPReq struct {
    Channel string `json:"channel" validate:"required,otpchannel"`
    Target  string `json:"target" validate:"required,max=191"`
    Purpose string `json:"purpose" validate:"omitempty,otppurpose"`
}

type verifyOTPReq struct {
    Channel string `json:"channel" validate:"required,otpchannel"`
    Target  string `json:"target" validate:"required,max=191"`
    Purpose string `json:"purpose" validate:"omitempty,otppurpose"`
    Code    string `json:"code" validate:"required,len=6,numeric"`
}

func purposeOrDefault(p string) model.OTPPurpose {
    if p == "" {
        return model.OTPPurposeVerify
    }
    return model.OTPPurpose(p)
}

// Send issues a code and waits until the channel accepted it.
func (h *OTPHandler) Send(c echo.Context) error {
    var req sendOTPReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    target, exp, err := h.OTP.Send(ctx, model.OTPChannel(req.Channel), req.Target, purposeOrDefault(req.Purpose))
    if err != nil {
        return otpError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"sent": true, "target": target, "expiresAt": exp})
}

// Verify checks a code.  A successful check consumes it.
func (h *OTPHandler) Verify(c echo.Context) error {
    var req verifyOTPReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    target, err := h.OTP.Verify(ctx, model.OTPChannel(req.Channel), req.Target, purposeOrDefault(req.Purpose), req.Code)
    if err != nil {
        return otpError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"verified": true, "target": target})
}

func otpError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrInvalidTarget):
        return validationError(c, "request validation failed", FieldError{Field: "target", Message: "is invalid for the channel"})
    case errors.Is(err, service.ErrOTPInvalid):
        return validationError(c, "invalid code", FieldError{Field: "code", Message: "does not match"})
    case errors.Is(err, service.ErrOTPExpired):
        return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "otp_expired", Message: "code expired or not found"})
    case errors.Is(err, service.ErrTooManyAttempts):
        return tooManyRequests(c, "too many attempts, request a new code")
    case errors.Is(err, service.ErrOTPRateLimited):
        return tooManyRequests(c, "too many codes requested, try again later")
    case errors.Is(err, service.ErrDeliveryFailed):
        return deliveryFailed(c, "could not deliver the code")
    }
    return internalError(c, err)
}
