package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/model"
)

// Validator adapts validator/v10 to echo.Validator.  Field names in errors
// are the JSON names of the request struct.
type Validator struct {
    v *validator.Validate
}

// NewValidator registers the CRM enum tags: leadstatus, priority, role,
// otpchannel and otppurpose.
func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    _ = v.RegisterValidation("leadstatus", func(fl validator.FieldLevel) bool {
        _, ok := model.ParseLeadStatus(fl.Field().String())
        return ok
    })
    _ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
        switch model.Priority(fl.Field().String()) {
        case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
            return true
        }
        return false
    })
    _ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
        return model.Role(fl.Field().String()).Valid()
    })
    _ = v.RegisterValidation("otpchannel", func(fl validator.FieldLevel) bool {
        switch model.OTPChannel(fl.Field().String()) {
        case model.OTPChannelEmail, model.OTPChannelSMS:
            return true
        }
        return false
    })
    _ = v.RegisterValidation("otppurpose", func(fl validator.FieldLevel) bool {
        switch model.OTPPurpose(fl.Field().String()) {
        case model.OTPPurposeVerify, model.OTPPurposeReset:
            return true
        }
        return false
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
    return cv.v.Struct(i)
}

// bindAndValidate decodes the body into req and validates it, writing a
// 400 response on failure.  ok is false when a response was written.
func bindAndValidate(c echo.Context, req any) (ok bool, err error) {
    if err := c.Bind(req); err != nil {
        return false, validationError(c, "invalid request body")
    }
    if err := c.Validate(req); err != nil {
        var verrs validator.ValidationErrors
        if errors.As(err, &verrs) {
            return false, validationError(c, "request validation failed", fieldErrors(verrs)...)
        }
        return false, validationError(c, "request validation failed")
    }
    return true, nil
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
    out := make([]FieldError, 0, len(verrs))
    for _, fe := range verrs {
        out = append(out, FieldError{Field: fe.Field(), Message: describe(fe)})
    }
    return out
}

func describe(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "is required"
    case "email":
        return "must be a valid email address"
    case "min":
        return fmt.Sprintf("must be at least %s", fe.Param())
    case "max":
        return fmt.Sprintf("must be at most %s", fe.Param())
    case "gte":
        return fmt.Sprintf("must be >= %s", fe.Param())
    case "oneof":
        return fmt.Sprintf("must be one of [%s]", fe.Param())
    case "leadstatus", "priority", "role", "otpchannel", "otppurpose":
        return "has an unknown value"
    case "len", "numeric":
        return "has an invalid format"
    }
    return "is invalid"
}
