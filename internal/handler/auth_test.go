package handler

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/solar-crm/internal/config"
    "github.com/iliyamo/solar-crm/internal/middleware"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/service"
    "github.com/iliyamo/solar-crm/internal/utils"
)

const testSecret = "handler-test-secret-0123456789abcdef"

func testConfig() config.Config {
    return config.Config{
        Env:         "test",
        JWTSecret:   testSecret,
        TokenTTL:    time.Hour,
        BcryptCost:  bcrypt.MinCost,
        PhoneRegion: "IN",
    }
}

type authFixture struct {
    users  *memUsers
    tokens *memTokens
    otp    *stubOTP
    e      *echo.Echo
}

func newAuthFixture() *authFixture {
    f := &authFixture{
        users:  newMemUsers(),
        tokens: &memTokens{revoked: map[string]bool{}},
        otp:    &stubOTP{},
    }
    h := NewAuthHandler(testConfig(), f.users, f.tokens, f.otp)
    f.e = newEcho()
    f.e.POST("/signup", h.Signup)
    f.e.POST("/login", h.Login)
    f.e.POST("/reset-password", h.ResetPassword)
    auth := f.e.Group("", middleware.JWTAuth(testSecret, f.tokens))
    auth.POST("/logout", h.Logout)
    auth.GET("/me", h.Me)
    return f
}

func TestSignupLoginLogout(t *testing.T) {
    f := newAuthFixture()

    rec := do(f.e, http.MethodPost, "/signup", `{"name":"Meera","email":"Meera@Acme.in","phone":"98765 43210","password":"s3cret-pass"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    signed := decode[authResp](t, rec)
    assert.NotEmpty(t, signed.Token)
    assert.Equal(t, "meera@acme.in", signed.User.Email)
    assert.Equal(t, model.RoleGeneral, signed.User.Role)
    assert.NotEmpty(t, signed.User.OrgID)
    require.NotNil(t, signed.User.Phone)
    assert.Equal(t, "+919876543210", *signed.User.Phone)

    var cookie *http.Cookie
    for _, c := range rec.Result().Cookies() {
        if c.Name == middleware.SessionCookie {
            cookie = c
        }
    }
    require.NotNil(t, cookie)
    assert.True(t, cookie.HttpOnly)
    assert.True(t, cookie.Secure)

    rec = do(f.e, http.MethodPost, "/signup", `{"name":"Other","email":"meera@acme.in","password":"s3cret-pass","orgId":"`+signed.User.OrgID+`"}`)
    assert.Equal(t, http.StatusConflict, rec.Code)

    rec = do(f.e, http.MethodPost, "/login", `{"email":"meera@acme.in","password":"wrong-pass"}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    rec = do(f.e, http.MethodPost, "/login", `{"email":"nobody@acme.in","password":"s3cret-pass"}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = do(f.e, http.MethodPost, "/login", `{"email":"MEERA@acme.in","password":"s3cret-pass"}`)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    token := decode[authResp](t, rec).Token

    authed := func(method, path string) int {
        req := httptest.NewRequest(method, path, nil)
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
        rec := httptest.NewRecorder()
        f.e.ServeHTTP(rec, req)
        return rec.Code
    }
    assert.Equal(t, http.StatusOK, authed(http.MethodGet, "/me"))
    assert.Equal(t, http.StatusOK, authed(http.MethodPost, "/logout"))
    assert.Equal(t, http.StatusUnauthorized, authed(http.MethodGet, "/me"))
    assert.Len(t, f.tokens.revoked, 1)
}

func TestSignupValidation(t *testing.T) {
    f := newAuthFixture()
    cases := map[string]string{
        "short password": `{"name":"A","email":"a@acme.in","password":"short"}`,
        "unknown role":   `{"name":"A","email":"a@acme.in","password":"long-enough","role":"admin"}`,
        "long org":       `{"name":"A","email":"a@acme.in","password":"long-enough","orgId":"` + strings.Repeat("o", 65) + `"}`,
        "bad phone":      `{"name":"A","email":"a@acme.in","password":"long-enough","phone":"123"}`,
    }
    for name, body := range cases {
        rec := do(f.e, http.MethodPost, "/signup", body)
        assert.Equal(t, http.StatusBadRequest, rec.Code, name)
    }
}

func TestSignupIntoExistingOrgIsSalespersonOnly(t *testing.T) {
    f := newAuthFixture()
    rec := do(f.e, http.MethodPost, "/signup", `{"name":"Founder","email":"founder@acme.in","password":"s3cret-pass","role":"manager"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    founder := decode[authResp](t, rec)
    assert.Equal(t, model.RoleManager, founder.User.Role)
    org := founder.User.OrgID

    for _, role := range []string{"manager", "general"} {
        body := `{"name":"Intruder","email":"` + role + `@evil.in","password":"s3cret-pass","role":"` + role + `","orgId":"` + org + `"}`
        rec = do(f.e, http.MethodPost, "/signup", body)
        assert.Equal(t, http.StatusForbidden, rec.Code, role)
    }
    assert.Len(t, f.users.byID, 1)

    rec = do(f.e, http.MethodPost, "/signup", `{"name":"Seller","email":"seller@acme.in","password":"s3cret-pass","orgId":"`+org+`"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    joined := decode[authResp](t, rec)
    assert.Equal(t, model.RoleSalesperson, joined.User.Role)
    assert.Equal(t, org, joined.User.OrgID)

    claims, err := utils.ParseSessionToken(testSecret, joined.Token)
    require.NoError(t, err)
    assert.Equal(t, string(model.RoleSalesperson), claims.Role)
    assert.Equal(t, org, claims.OrgID)

    rec = do(f.e, http.MethodPost, "/signup", `{"name":"Lost","email":"lost@acme.in","password":"s3cret-pass","orgId":"org-missing"}`)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInactiveUserCannotLogin(t *testing.T) {
    f := newAuthFixture()
    hash, err := utils.HashPassword("s3cret-pass", bcrypt.MinCost)
    require.NoError(t, err)
    require.NoError(t, f.users.CreateWithDashboard(context.Background(), &model.User{
        OrgID: "org-1", Name: "Gone", Email: "gone@acme.in", PasswordHash: hash, Role: model.RoleManager,
    }))
    rec := do(f.e, http.MethodPost, "/login", `{"email":"gone@acme.in","password":"s3cret-pass"}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPassword(t *testing.T) {
    f := newAuthFixture()
    rec := do(f.e, http.MethodPost, "/signup", `{"name":"Meera","email":"meera@acme.in","password":"old-password"}`)
    require.Equal(t, http.StatusCreated, rec.Code)

    rec = do(f.e, http.MethodPost, "/reset-password", `{"email":"meera@acme.in","code":"123456","newPassword":"new-password"}`)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    rec = do(f.e, http.MethodPost, "/login", `{"email":"meera@acme.in","password":"new-password"}`)
    assert.Equal(t, http.StatusOK, rec.Code)

    f.otp.verifyErr = service.ErrOTPExpired
    rec = do(f.e, http.MethodPost, "/reset-password", `{"email":"meera@acme.in","code":"123456","newPassword":"other-password"}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "otp_expired", decode[ErrorResponse](t, rec).Error)

    f.otp.verifyErr = nil
    rec = do(f.e, http.MethodPost, "/reset-password", `{"email":"ghost@acme.in","code":"123456","newPassword":"other-password"}`)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPErrorMapping(t *testing.T) {
    cases := []struct {
        err    error
        status int
        code   string
    }{
        {nil, http.StatusOK, ""},
        {service.ErrInvalidTarget, http.StatusBadRequest, "validation_error"},
        {service.ErrOTPInvalid, http.StatusBadRequest, "validation_error"},
        {service.ErrOTPExpired, http.StatusBadRequest, "otp_expired"},
        {service.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_requests"},
        {service.ErrOTPRateLimited, http.StatusTooManyRequests, "too_many_requests"},
        {fmt.Errorf("sendgrid: %w", service.ErrDeliveryFailed), http.StatusBadGateway, "delivery_failed"},
        {errBoom, http.StatusInternalServerError, "internal_error"},
    }
    for _, tc := range cases {
        stub := &stubOTP{sendErr: tc.err, verifyErr: tc.err}
        h := NewOTPHandler(stub)
        e := newEcho()
        e.POST("/send-otp", h.Send)
        e.POST("/verify-otp", h.Verify)

        rec := do(e, http.MethodPost, "/send-otp", `{"channel":"email","target":"a@acme.in"}`)
        assert.Equal(t, tc.status, rec.Code, "send %v", tc.err)
        rec = do(e, http.MethodPost, "/verify-otp", `{"channel":"email","target":"a@acme.in","code":"123456"}`)
        assert.Equal(t, tc.status, rec.Code, "verify %v", tc.err)
        if tc.code != "" {
            assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Error)
        }
    }
}

func TestOTPRequestValidation(t *testing.T) {
    e := newEcho()
    h := NewOTPHandler(&stubOTP{})
    e.POST("/send-otp", h.Send)
    e.POST("/verify-otp", h.Verify)

    assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/send-otp", `{"channel":"fax","target":"x"}`).Code)
    assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/send-otp", `{"channel":"sms","target":"x","purpose":"login"}`).Code)
    assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/verify-otp", `{"channel":"sms","target":"x","code":"12ab56"}`).Code)
    assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/send-otp", `{"channel":"sms","target":"+919876543210","purpose":"reset"}`).Code)
}
