package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/solar-crm/internal/config"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/repository"
    "github.com/iliyamo/solar-crm/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  UserStore
    Tokens TokenStore
    OTP    OTPIssuer
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, otp OTPIssuer) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, OTP: otp}
}

// ----- DTOs -----

type signupReq struct {
    Name     string `json:"name" validate:"required,max=120"`
    Email    string `json:"email" validate:"required,email,max=191"`
    Phone    string `json:"phone" validate:"omitempty,max=32"`
    Password string `json:"password" validate:"required,min=8,max=72"`
    Role     string `json:"role" validate:"omitempty,role"`
    OrgID    string `json:"orgId" validate:"omitempty,max=64"`
}

type loginReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}

type resetPasswordReq struct {
    Email       string `json:"email" validate:"required,email"`
    Code        string `json:"code" validate:"required,len=6,numeric"`
    NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type userPart struct {
    ID    uint64     `json:"id"`
    OrgID string     `json:"orgId"`
    Name  string     `json:"name"`
    Email string     `json:"email"`
    Phone *string    `json:"phone,omitempty"`
    Role  model.Role `json:"role"`
}

type authResp struct {
    Token     string    `json:"token"`
    ExpiresAt time.Time `json:"expiresAt"`
    User      userPart  `json:"user"`
}

func toUserPart(u *model.User) userPart {
    return userPart{ID: u.ID, OrgID: u.OrgID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}

// Signup creates the user with an empty dashboard and starts a session.
// Without an orgId a new organization is opened and its first member may
// take any role (general by default).  Joining an existing organization is
// limited to the salesperson role.
func (h *AuthHandler) Signup(c echo.Context) error {
    var req signupReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    role := model.Role(req.Role)
    orgID := strings.TrimSpace(req.OrgID)
    if orgID == "" {
        orgID = uuid.NewString()
        if role == "" {
            role = model.RoleGeneral
        }
    } else {
        exists, err := h.Users.OrgExists(ctx, orgID)
        if err != nil {
            return internalError(c, err)
        }
        if !exists {
            return notFound(c, "organization not found")
        }
        if role != "" && role != model.RoleSalesperson {
            return forbidden(c, "only salesperson accounts can join an existing organization")
        }
        role = model.RoleSalesperson
    }

    u := &model.User{
        OrgID:    orgID,
        Name:     req.Name,
        Email:    utils.NormalizeEmail(req.Email),
        Role:     role,
        IsActive: true,
    }
    if req.Phone != "" {
        p, err := utils.NormalizePhone(req.Phone, h.Cfg.PhoneRegion)
        if err != nil {
            return validationError(c, "request validation failed", FieldError{Field: "phone", Message: "must be a valid phone number"})
        }
        u.Phone = &p
    }
    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return internalError(c, err)
    }
    u.PasswordHash = hash

    if err := h.Users.CreateWithDashboard(ctx, u); err != nil {
        switch {
        case errors.Is(err, repository.ErrEmailExists):
            return conflict(c, "email already exists")
        case errors.Is(err, repository.ErrPhoneExists):
            return conflict(c, "phone already exists")
        }
        return internalError(c, err)
    }
    return h.startSession(c, http.StatusCreated, u)
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, utils.NormalizeEmail(req.Email))
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return unauthorized(c, "invalid credentials")
        }
        return internalError(c, err)
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return unauthorized(c, "invalid credentials")
    }
    return h.startSession(c, http.StatusOK, u)
}

func (h *AuthHandler) startSession(c echo.Context, status int, u *model.User) error {
    tok, err := utils.NewSessionToken(h.Cfg.JWTSecret, u.ID, u.Email, string(u.Role), u.OrgID, h.Cfg.TokenTTL)
    if err != nil {
        return internalError(c, err)
    }
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    tok.Token,
        Path:     "/",
        Expires:  tok.Exp,
        HttpOnly: true,
        Secure:   !h.Cfg.IsDev(),
        SameSite: http.SameSiteLaxMode,
    })
    return c.JSON(status, authResp{Token: tok.Token, ExpiresAt: tok.Exp, User: toUserPart(u)})
}

// Logout revokes the presented token until it would expire.
func (h *AuthHandler) Logout(c echo.Context) error {
    id, ok := middleware.IdentityFrom(c)
    if !ok {
        return unauthorized(c, "missing session")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if id.TokenID != "" {
        if err := h.Tokens.Revoke(ctx, id.TokenID, id.UserID, id.ExpiresAt); err != nil {
            return internalError(c, err)
        }
    }
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    "",
        Path:     "/",
        MaxAge:   -1,
        HttpOnly: true,
        Secure:   !h.Cfg.IsDev(),
        SameSite: http.SameSiteLaxMode,
    })
    return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the session carried by the token.
func (h *AuthHandler) Me(c echo.Context) error {
    id, ok := middleware.IdentityFrom(c)
    if !ok {
        return unauthorized(c, "missing session")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "userId":    id.UserID,
        "email":     id.Email,
        "role":      id.Role,
        "orgId":     id.OrgID,
        "expiresAt": id.ExpiresAt,
    })
}

// ResetPassword consumes a reset code sent to the email and sets a new
// password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
    var req resetPasswordReq
    if ok, err := bindAndValidate(c, &req); !ok {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    email, err := h.OTP.Verify(ctx, model.OTPChannelEmail, req.Email, model.OTPPurposeReset, req.Code)
    if err != nil {
        return otpError(c, err)
    }
    u, err := h.Users.GetByEmail(ctx, email)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return notFound(c, "user not found")
        }
        return internalError(c, err)
    }
    hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
    if err != nil {
        return internalError(c, err)
    }
    if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
        return internalError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
