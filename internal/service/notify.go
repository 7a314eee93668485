package service

import (
    "context"
    "fmt"
    "time"

    "github.com/rs/zerolog/log"
    "github.com/sendgrid/sendgrid-go"
    "github.com/sendgrid/sendgrid-go/helpers/mail"

    "github.com/iliyamo/solar-crm/internal/queue"
)

// Mailer delivers a single email.
type Mailer interface {
    Send(ctx context.Context, to, subject, plain, html string) error
}

// SMSSender hands a text message to the SMS gateway.
type SMSSender interface {
    SendSMS(ctx context.Context, to, body, purpose string) error
}

// NewMailer returns a SendGrid mailer when key is set and a log-only mailer
// otherwise.
func NewMailer(key, from, fromName string) Mailer {
    if key == "" {
        log.Warn().Msg("email: console-only mode (set SENDGRID_API_KEY to deliver)")
        return LogMailer{}
    }
    return &SendGridMailer{client: sendgrid.NewSendClient(key), from: mail.NewEmail(fromName, from)}
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
    client *sendgrid.Client
    from   *mail.Email
}

func (m *SendGridMailer) Send(ctx context.Context, to, subject, plain, html string) error {
    msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), plain, html)
    resp, err := m.client.SendWithContext(ctx, msg)
    if err != nil {
        return fmt.Errorf("sendgrid: %w", err)
    }
    if resp.StatusCode >= 300 {
        return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
    }
    log.Info().Str("to", to).Int("status", resp.StatusCode).Msg("email: sent")
    return nil
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, plain, _ string) error {
    log.Info().Str("to", to).Str("subject", subject).Str("body", plain).Msg("email: console delivery")
    return nil
}

// AMQPSMSSender queues messages on queue.SMSQueue with publisher confirms.
type AMQPSMSSender struct {
    Pub *Publisher
}

func (s AMQPSMSSender) SendSMS(ctx context.Context, to, body, purpose string) error {
    return s.Pub.PublishConfirmed(ctx, queue.SMSQueue, queue.SMSMessage{
        To:      to,
        Body:    body,
        Purpose: purpose,
        SentAt:  time.Now().UTC().Format(time.RFC3339),
    })
}

// LogSMSSender logs messages; used when no broker is configured.
type LogSMSSender struct{}

func (LogSMSSender) SendSMS(_ context.Context, to, body, purpose string) error {
    log.Info().Str("to", to).Str("purpose", purpose).Str("body", body).Msg("sms: console delivery")
    return nil
}

// NewSMSSender picks the AMQP sender when pub has a broker.
func NewSMSSender(pub *Publisher) SMSSender {
    if pub.Enabled() {
        return AMQPSMSSender{Pub: pub}
    }
    log.Warn().Msg("sms: console-only mode (set RABBITMQ_URL to deliver)")
    return LogSMSSender{}
}
