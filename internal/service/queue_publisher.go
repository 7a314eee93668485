// Package service holds the application services that sit between the HTTP
// handlers and the outside world: the RabbitMQ publisher, the email and SMS
// senders and the one-time code flow.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/queue"
)

// ErrPublisherDisabled is returned by confirmed publishes when no broker URL
// is configured.
var ErrPublisherDisabled = errors.New("amqp publisher disabled")

// Publisher sends JSON messages to durable RabbitMQ queues over the
// default exchange.  It dials per publish; the write volume is a handful of
// messages per request at most.
type Publisher struct {
    URL string
}

// NewPublisher returns a publisher for url.  An empty url yields a
// publisher whose lead events are dropped with a debug log.
func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.URL != "" }

// PublishLeadEvent publishes ev to queue.LeadEventsQueue.  Callers treat
// failures as non fatal.
func (p *Publisher) PublishLeadEvent(ctx context.Context, ev queue.LeadEvent) error {
    if !p.Enabled() {
        log.Debug().Str("type", ev.Type).Uint64("lead_id", ev.LeadID).Msg("rabbitmq: disabled, lead event dropped")
        return nil
    }
    if ev.OccurredAt == "" {
        ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
    }
    return p.publish(ctx, queue.LeadEventsQueue, ev, false)
}

// PublishConfirmed publishes v to queueName and waits for the broker to
// confirm it.
func (p *Publisher) PublishConfirmed(ctx context.Context, queueName string, v any) error {
    if !p.Enabled() {
        return ErrPublisherDisabled
    }
    return p.publish(ctx, queueName, v, true)
}

func (p *Publisher) publish(ctx context.Context, queueName string, v any, confirm bool) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Error().Err(err).Msg("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Error().Err(err).Msg("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        log.Error().Err(err).Str("queue", queueName).Msg("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(v)
    if err != nil {
        return fmt.Errorf("marshal message: %w", err)
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if !confirm {
        if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
            log.Error().Err(err).Str("queue", queueName).Msg("rabbitmq: publish failed")
            return err
        }
        return nil
    }

    if err := ch.Confirm(false); err != nil {
        return fmt.Errorf("enable confirms: %w", err)
    }
    dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queueName, false, false, pub)
    if err != nil {
        log.Error().Err(err).Str("queue", queueName).Msg("rabbitmq: publish failed")
        return err
    }
    acked, err := dc.WaitContext(ctx)
    if err != nil {
        return err
    }
    if !acked {
        return fmt.Errorf("broker nacked message on %s", queueName)
    }
    return nil
}
