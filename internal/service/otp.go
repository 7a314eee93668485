package service

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/iliyamo/solar-crm/internal/metrics"
    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/repository"
    "github.com/iliyamo/solar-crm/internal/utils"
)

var (
    ErrInvalidTarget   = errors.New("invalid otp target")
    ErrOTPInvalid      = errors.New("invalid code")
    ErrOTPExpired      = errors.New("code expired or not found")
    ErrTooManyAttempts = errors.New("too many attempts")
    ErrOTPRateLimited  = errors.New("too many codes requested")
    ErrDeliveryFailed  = errors.New("code delivery failed")
)

// OTPStore is the persistence the OTP flow needs; *repository.OTPRepo
// satisfies it.
type OTPStore interface {
    Create(ctx context.Context, o *model.Otp) error
    LatestActive(ctx context.Context, target string, channel model.OTPChannel, purpose model.OTPPurpose) (*model.Otp, error)
    IncrementAttempts(ctx context.Context, id uint64) (uint32, error)
    Consume(ctx context.Context, id uint64) error
    CountSince(ctx context.Context, target string, t time.Time) (int, error)
}

// OTPService issues and verifies six digit codes over email or SMS.
type OTPService struct {
    Store       OTPStore
    Mailer      Mailer
    SMS         SMSSender
    TTL         time.Duration
    MaxAttempts int
    PerHour     int    // codes per target per hour; 0 disables the cap
    Region      string // default phone region
    Cost        int    // bcrypt cost for code hashes
    Now         func() time.Time
}

func (s *OTPService) now() time.Time {
    if s.Now != nil {
        return s.Now()
    }
    return time.Now()
}

// NormalizeTarget returns the canonical form of target for channel.
func (s *OTPService) NormalizeTarget(channel model.OTPChannel, target string) (string, error) {
    switch channel {
    case model.OTPChannelEmail:
        t := utils.NormalizeEmail(target)
        if !strings.Contains(t, "@") {
            return "", ErrInvalidTarget
        }
        return t, nil
    case model.OTPChannelSMS:
        t, err := utils.NormalizePhone(target, s.Region)
        if err != nil {
            return "", ErrInvalidTarget
        }
        return t, nil
    }
    return "", ErrInvalidTarget
}

// Send issues a fresh code, supersedes earlier ones and waits for the
// channel to accept it.  It returns the normalized target and the expiry.
func (s *OTPService) Send(ctx context.Context, channel model.OTPChannel, target string, purpose model.OTPPurpose) (string, time.Time, error) {
    target, err := s.NormalizeTarget(channel, target)
    if err != nil {
        return "", time.Time{}, err
    }
    now := s.now()
    if s.PerHour > 0 {
        n, err := s.Store.CountSince(ctx, target, now.Add(-time.Hour))
        if err != nil {
            return "", time.Time{}, err
        }
        if n >= s.PerHour {
            metrics.OTPSent.WithLabelValues(string(channel), "limited").Inc()
            return "", time.Time{}, ErrOTPRateLimited
        }
    }

    code, err := utils.NewOTPCode()
    if err != nil {
        return "", time.Time{}, err
    }
    hash, err := utils.HashPassword(code, s.Cost)
    if err != nil {
        return "", time.Time{}, err
    }
    o := &model.Otp{
        Target:    target,
        Channel:   channel,
        Purpose:   purpose,
        CodeHash:  hash,
        ExpiresAt: now.Add(s.TTL),
    }
    if err := s.Store.Create(ctx, o); err != nil {
        return "", time.Time{}, err
    }

    if err := s.deliver(ctx, channel, target, code, purpose); err != nil {
        metrics.OTPSent.WithLabelValues(string(channel), "failed").Inc()
        log.Error().Err(err).Str("channel", string(channel)).Msg("otp: delivery failed")
        return "", time.Time{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
    }
    metrics.OTPSent.WithLabelValues(string(channel), "sent").Inc()
    return target, o.ExpiresAt, nil
}

func (s *OTPService) deliver(ctx context.Context, channel model.OTPChannel, target, code string, purpose model.OTPPurpose) error {
    mins := int(s.TTL / time.Minute)
    text := fmt.Sprintf("Your Solar CRM code is %s. It expires in %d minutes.", code, mins)
    if channel == model.OTPChannelSMS {
        return s.SMS.SendSMS(ctx, target, text, string(purpose))
    }
    subject := "Your verification code"
    if purpose == model.OTPPurposeReset {
        subject = "Your password reset code"
    }
    html := fmt.Sprintf("<p>Your Solar CRM code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, mins)
    return s.Mailer.Send(ctx, target, subject, text, html)
}

// Verify checks code against the newest active code for target.  The
// attempt is counted before comparing, and a matching code is consumed.
// It returns the normalized target.
func (s *OTPService) Verify(ctx context.Context, channel model.OTPChannel, target string, purpose model.OTPPurpose, code string) (string, error) {
    target, err := s.NormalizeTarget(channel, target)
    if err != nil {
        return "", err
    }
    o, err := s.Store.LatestActive(ctx, target, channel, purpose)
    if err != nil {
        if errors.Is(err, repository.ErrOTPNotFound) {
            return "", ErrOTPExpired
        }
        return "", err
    }
    if o.Expired(s.now()) {
        return "", ErrOTPExpired
    }
    n, err := s.Store.IncrementAttempts(ctx, o.ID)
    if err != nil {
        return "", err
    }
    if s.MaxAttempts > 0 && int(n) > s.MaxAttempts {
        return "", ErrTooManyAttempts
    }
    if !utils.VerifyPassword(o.CodeHash, strings.TrimSpace(code)) {
        return "", ErrOTPInvalid
    }
    if err := s.Store.Consume(ctx, o.ID); err != nil {
        if errors.Is(err, repository.ErrOTPNotFound) {
            return "", ErrOTPExpired
        }
        return "", err
    }
    return target, nil
}
