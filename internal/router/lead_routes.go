package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/solar-crm/internal/middleware"
	"github.com/iliyamo/solar-crm/internal/model"
)

// RegisterLeads registers the /leads resource.  Every route needs a
// session; delete and export are limited to managers and general users.
// Static segments are registered before /:id.
func RegisterLeads(e *echo.Echo, d Deps) {
	h := d.Leads
	if h == nil {
		return
	}
	g := e.Group("/leads",
		middleware.JWTAuth(d.Cfg.JWTSecret, d.Revoked),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	managers := middleware.RequireRole(model.RoleManager, model.RoleGeneral)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/search", h.Search)
	g.GET("/metrics", h.Metrics, middleware.NewRedisCache(d.Cache, d.Redis))
	g.GET("/export", h.Export, managers)
	g.POST("/status-preview", h.StatusPreview)

	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete, managers)
	g.POST("/:id/calllog", h.AppendCallLog)
	g.GET("/:id/calllog", h.ListCallLogs)
}
