package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/solar-crm/internal/config"
	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/handler"
	"github.com/iliyamo/solar-crm/internal/logging"
	"github.com/iliyamo/solar-crm/internal/metrics"
	"github.com/iliyamo/solar-crm/internal/repository"
	"github.com/iliyamo/solar-crm/internal/router"
	"github.com/iliyamo/solar-crm/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Env,
			AttachStacktrace: true,
		}); err != nil {
			log.Warn().Err(err).Msg("sentry disabled")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}
	metrics.Init()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	leads := repository.NewLeadRepo(db)

	pub := service.NewPublisher(cfg.AMQPURL)
	if !pub.Enabled() {
		log.Warn().Msg("AMQP_URL not set, lead events are dropped and SMS codes are only logged")
	}
	otp := &service.OTPService{
		Store:       repository.NewOTPRepo(db),
		Mailer:      service.NewMailer(cfg.SendGridKey, cfg.MailFrom, cfg.MailFromName),
		SMS:         service.NewSMSSender(pub),
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		PerHour:     cfg.OTPSendPerHour,
		Region:      cfg.PhoneRegion,
		Cost:        cfg.BcryptCost,
	}

	e := router.New(router.Deps{
		Cfg:       cfg,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		DB:        db,
		Revoked:   tokens,

		Auth: handler.NewAuthHandler(cfg, users, tokens, otp),
		OTP:  handler.NewOTPHandler(otp),
		Leads: &handler.LeadHandler{
			Leads:    leads,
			CallLogs: repository.NewCallLogRepo(db),
			Events:   pub,
			Region:   cfg.PhoneRegion,
		},
		Dashboard: &handler.DashboardHandler{
			Leads:      leads,
			Dashboards: repository.NewDashboardRepo(db),
		},
		Attendance: &handler.AttendanceHandler{Store: repository.NewAttendanceRepo(db)},
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
