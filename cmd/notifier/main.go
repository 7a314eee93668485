// Command notifier drains the lead event and SMS queues and runs the
// scheduled overdue digest.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/solar-crm/internal/config"
	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/jobs"
	"github.com/iliyamo/solar-crm/internal/logging"
	"github.com/iliyamo/solar-crm/internal/metrics"
	"github.com/iliyamo/solar-crm/internal/queue"
	"github.com/iliyamo/solar-crm/internal/repository"
	"github.com/iliyamo/solar-crm/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)
	metrics.Init()

	if cfg.AMQPURL == "" {
		log.Fatal().Msg("AMQP_URL is required")
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.LogDir).Msg("cannot create log directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	digest := &jobs.Digest{
		Leads:  repository.NewLeadRepo(db),
		Pub:    service.NewPublisher(cfg.AMQPURL),
		Tokens: repository.NewTokenRepo(db),
	}
	sched, err := jobs.NewScheduler(cfg.DigestSpec, digest)
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.DigestSpec).Msg("invalid digest schedule")
	}
	sched.Start()
	log.Info().Str("spec", cfg.DigestSpec).Msg("digest scheduled (IST)")

	activity := &queue.ActivityLog{Dir: cfg.LogDir}
	consumer := &queue.Consumer{
		URL: cfg.AMQPURL,
		Handlers: map[string]queue.Handler{
			queue.LeadEventsQueue: activity.Handle,
			queue.SMSQueue:        queue.LogSMS,
		},
	}
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer stopped")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
	log.Info().Msg("notifier stopped")
}
