package router

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/solar-crm/internal/middleware"
)

// RegisterAuth registers signup, login, session and one-time code routes.
// Credential and OTP endpoints get their own, much smaller, token buckets.
func RegisterAuth(e *echo.Echo, d Deps) {
	if d.Auth == nil {
		return
	}
	authLimit := middleware.NewTokenBucket(d.RateLimit.WithBudget(20, time.Minute, d.RateLimit.Prefix+":auth"), d.Redis)
	e.POST("/signup", d.Auth.Signup, authLimit)
	e.POST("/login", d.Auth.Login, authLimit)
	e.POST("/reset-password", d.Auth.ResetPassword, authLimit)

	if d.OTP != nil {
		perHour := d.Cfg.OTPSendPerHour
		if perHour < 1 {
			perHour = 5
		}
		sendLimit := middleware.NewTokenBucket(d.RateLimit.WithBudget(perHour, time.Hour, d.RateLimit.Prefix+":otp"), d.Redis)
		verifyLimit := middleware.NewTokenBucket(d.RateLimit.WithBudget(30, time.Hour, d.RateLimit.Prefix+":otpv"), d.Redis)
		e.POST("/send-otp", d.OTP.Send, sendLimit)
		e.POST("/verify-otp", d.OTP.Verify, verifyLimit)
	}

	g := e.Group("", middleware.JWTAuth(d.Cfg.JWTSecret, d.Revoked))
	g.POST("/logout", d.Auth.Logout)
	g.GET("/me", d.Auth.Me)
}
