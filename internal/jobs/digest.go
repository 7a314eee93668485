// Package jobs runs the notifier's scheduled work.
package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/metrics"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/queue"
    "github.com/iliyamo/solar-crm/internal/repository"
)

// OverdueLister is satisfied by *repository.LeadRepo.
type OverdueLister interface {
    ListOverdue(ctx context.Context, scope repository.Scope, now time.Time, limit int) ([]model.Lead, error)
}

// EventPublisher is satisfied by *service.Publisher.
type EventPublisher interface {
    PublishLeadEvent(ctx context.Context, ev queue.LeadEvent) error
}

// TokenPurger is satisfied by *repository.TokenRepo.
type TokenPurger interface {
    PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Digest publishes one digest.overdue event per lead owner listing that
// owner's overdue leads, most overdue first.
type Digest struct {
    Leads    OverdueLister
    Pub      EventPublisher
    Tokens   TokenPurger // optional
    Scan     int         // max leads loaded per run
    PerOwner int         // max leads listed per event
    Now      func() time.Time
}

// Run executes one digest pass and returns the number of events published.
func (d *Digest) Run(ctx context.Context) (int, error) {
    now := time.Now()
    if d.Now != nil {
        now = d.Now()
    }
    scan, perOwner := d.Scan, d.PerOwner
    if scan <= 0 {
        scan = 5000
    }
    if perOwner <= 0 {
        perOwner = 20
    }

    leads, err := d.Leads.ListOverdue(ctx, repository.Scope{}, now, scan)
    if err != nil {
        metrics.DigestRuns.WithLabelValues("error").Inc()
        return 0, err
    }

    type owner struct {
        org string
        id  uint64
    }
    byOwner := map[owner][]model.Lead{}
    var order []owner
    for _, l := range leads {
        k := owner{l.OrgID, l.CreatedByID}
        if _, ok := byOwner[k]; !ok {
            order = append(order, k)
        }
        byOwner[k] = append(byOwner[k], l)
    }

    var errs []error
    sent := 0
    for _, k := range order {
        ranked := leadstatus.RankOverdue(byOwner[k], now)
        if len(ranked) == 0 {
            continue
        }
        if len(ranked) > perOwner {
            ranked = ranked[:perOwner]
        }
        items := make([]queue.OverdueItem, len(ranked))
        for i, l := range ranked {
            items[i] = queue.OverdueItem{LeadID: l.ID, Name: l.Name, Phone: l.Phone, DaysOverdue: l.DaysOverdue}
        }
        ev := queue.LeadEvent{
            Type:       queue.DigestOverdue,
            OrgID:      k.org,
            UserID:     k.id,
            Overdue:    items,
            OccurredAt: now.UTC().Format(time.RFC3339),
        }
        if err := d.Pub.PublishLeadEvent(ctx, ev); err != nil {
            errs = append(errs, err)
            continue
        }
        sent++
    }

    if d.Tokens != nil {
        if n, err := d.Tokens.PurgeExpired(ctx, now); err != nil {
            log.Warn().Err(err).Msg("digest: purge revoked tokens failed")
        } else if n > 0 {
            log.Info().Int64("purged", n).Msg("digest: expired revoked tokens purged")
        }
    }

    if err := errors.Join(errs...); err != nil {
        metrics.DigestRuns.WithLabelValues("error").Inc()
        return sent, err
    }
    metrics.DigestRuns.WithLabelValues("ok").Inc()
    return sent, nil
}

// Scheduler runs the digest on a cron expression evaluated in IST.
type Scheduler struct {
    cron *cron.Cron
}

// cronLogger adapts a zerolog logger to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
    c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
    c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}

// NewScheduler registers d under spec.  A panicking run is logged and the
// schedule keeps going.
func NewScheduler(spec string, d *Digest) (*Scheduler, error) {
    return newScheduler(spec, d, log.Logger)
}

func newScheduler(spec string, d *Digest, l zerolog.Logger) (*Scheduler, error) {
    cl := cronLogger{l: l}
    c := cron.New(
        cron.WithLocation(leadstatus.IST),
        cron.WithLogger(cl),
        cron.WithChain(cron.Recover(cl)),
    )
    _, err := c.AddFunc(spec, func() {
        log.Info().Msg("digest: running overdue digest")
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
        defer cancel()

        n, err := d.Run(ctx)
        if err != nil {
            log.Error().Err(err).Int("published", n).Msg("digest: run finished with errors")
            return
        }
        log.Info().Int("published", n).Msg("digest: run completed")
    })
    if err != nil {
        return nil, err
    }
    return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running digest until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
    done := s.cron.Stop()
    select {
    case <-done.Done():
    case <-ctx.Done():
    }
}
