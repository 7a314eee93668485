// Package router wires handlers and middleware into an Echo instance.
package router

import (
	"context"
	"strconv"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/solar-crm/internal/config"
	"github.com/iliyamo/solar-crm/internal/handler"
	"github.com/iliyamo/solar-crm/internal/middleware"
)

// Deps is everything the routes need.  Redis may be nil; the response
// cache is then skipped and rate limits fall back to process memory.
type Deps struct {
	Cfg       config.Config
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	DB        handler.Pinger
	Revoked   middleware.RevocationChecker

	Auth       *handler.AuthHandler
	OTP        *handler.OTPHandler
	Leads      *handler.LeadHandler
	Dashboard  *handler.DashboardHandler
	Attendance *handler.AttendanceHandler
}

// New builds the API server.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	if d.Cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Metrics())

	// cached dashboards of everyone touched by a lead write are dropped
	if d.Leads != nil && d.Leads.AfterWrite == nil && d.Redis != nil {
		d.Leads.AfterWrite = func(ctx context.Context, userID uint64) {
			middleware.InvalidateUser(ctx, d.Cache, d.Redis, strconv.FormatUint(userID, 10))
		}
	}

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterLeads(e, d)
	RegisterWorkspace(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated probes and the Prometheus
// scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/health", handler.Health)
	if db != nil {
		e.GET("/ready", handler.Ready(db))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
