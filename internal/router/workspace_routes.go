package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/solar-crm/internal/middleware"
)

// RegisterWorkspace registers the dashboard and attendance endpoints.
func RegisterWorkspace(e *echo.Echo, d Deps) {
	auth := middleware.JWTAuth(d.Cfg.JWTSecret, d.Revoked)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	if d.Dashboard != nil {
		e.GET("/dashboard", d.Dashboard.Get, auth, limit, middleware.NewRedisCache(d.Cache, d.Redis))
	}
	if a := d.Attendance; a != nil {
		g := e.Group("/attendance", auth, limit)
		g.GET("", a.List)
		g.POST("/check-in", a.CheckIn)
		g.POST("/check-out", a.CheckOut)
		g.POST("/absence", a.Absence)
	}
}
