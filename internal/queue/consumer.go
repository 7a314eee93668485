package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "regexp"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog/log"
)

// Handler processes one message body.  A returned error rejects the
// message without requeueing it.
type Handler func(body []byte) error

// Consumer subscribes handlers to durable queues and keeps them running
// across broker restarts.
type Consumer struct {
    URL      string
    Handlers map[string]Handler // queue name -> handler
}

// Run dials the broker and consumes every queue until ctx is cancelled,
// reconnecting with exponential backoff (1s up to 30s).
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn().Err(err).Dur("retry_in", backoff).Msg("consumer: failed to dial broker")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeAll(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn().Err(err).Msg("consumer: consume loop ended, reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeAll(ctx context.Context, conn *amqp.Connection) error {
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()

    errs := make(chan error, len(c.Handlers))
    var wg sync.WaitGroup
    for name, h := range c.Handlers {
        wg.Add(1)
        go func(name string, h Handler) {
            defer wg.Done()
            errs <- consumeLoop(ctx, conn, name, h)
        }(name, h)
    }
    // the first loop to end tears the connection down for all
    err := <-errs
    cancel()
    _ = conn.Close()
    wg.Wait()
    return err
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, h Handler) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn().Err(err).Str("queue", queueName).Msg("consumer: set QoS failed")
    }
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare %s: %w", queueName, err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume %s: %w", queueName, err)
    }

    for d := range msgs {
        if err := h(d.Body); err != nil {
            log.Error().Err(err).Str("queue", queueName).Msg("consumer: handle message failed")
            _ = d.Nack(false, false) // reject, do not requeue
            continue
        }
        _ = d.Ack(false)
    }
    if ctx.Err() != nil {
        return ctx.Err()
    }
    return errors.New("deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

// ActivityLog appends one line per LeadEvent to <Dir>/lead-activity.log.
type ActivityLog struct {
    Dir string
    mu  sync.Mutex
}

// Handle is a Handler for LeadEventsQueue.
func (a *ActivityLog) Handle(body []byte) error {
    var ev LeadEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(a.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", a.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(a.Dir, "lead-activity.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(FormatLeadEvent(ev) + "\n"); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLeadEvent renders ev as a single human readable line.
func FormatLeadEvent(ev LeadEvent) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | org=%s | user_id=%d", ev.OccurredAt, ev.Type, ev.OrgID, ev.UserID)
    if ev.LeadID != 0 {
        fmt.Fprintf(&b, " | lead_id=%d | name=%q", ev.LeadID, ev.LeadName)
    }
    if ev.LeadStatus != "" {
        fmt.Fprintf(&b, " | status=%s", ev.LeadStatus)
    }
    if ev.CallStatus != "" {
        fmt.Fprintf(&b, " | call=%s", ev.CallStatus)
    }
    if ev.Type == DigestOverdue {
        ids := make([]string, 0, len(ev.Overdue))
        for _, it := range ev.Overdue {
            ids = append(ids, fmt.Sprintf("%d(%dd)", it.LeadID, it.DaysOverdue))
        }
        fmt.Fprintf(&b, " | overdue=%d [%s]", len(ev.Overdue), strings.Join(ids, ","))
    }
    return b.String()
}

var digitRun = regexp.MustCompile(`\d{4,}`)

// redactCodes masks every run of four or more digits.
func redactCodes(s string) string {
    return digitRun.ReplaceAllStringFunc(s, func(m string) string {
        return strings.Repeat("*", len(m))
    })
}

// LogSMS is the development SMS gateway: it logs each message instead of
// sending it.  Codes in the body are masked.
func LogSMS(body []byte) error {
    var m SMSMessage
    if err := json.Unmarshal(body, &m); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if m.To == "" {
        return errors.New("sms without recipient")
    }
    log.Info().Str("to", m.To).Str("purpose", m.Purpose).Str("body", redactCodes(m.Body)).Msg("sms gateway: message delivered")
    return nil
}
