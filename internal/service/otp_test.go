package service

import (
    "context"
    "errors"
    "regexp"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/solar-crm/internal/model"
    "github.com/iliyamo/solar-crm/internal/repository"
)

type memOTPStore struct {
    mu   sync.Mutex
    rows []*model.Otp
}

func (m *memOTPStore) Create(_ context.Context, o *model.Otp) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, r := range m.rows {
        if r.Target == o.Target && r.Channel == o.Channel && r.Purpose == o.Purpose {
            r.Consumed = true
        }
    }
    o.ID = uint64(len(m.rows) + 1)
    o.CreatedAt = time.Now()
    cp := *o
    m.rows = append(m.rows, &cp)
    return nil
}

func (m *memOTPStore) LatestActive(_ context.Context, target string, ch model.OTPChannel, p model.OTPPurpose) (*model.Otp, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for i := len(m.rows) - 1; i >= 0; i-- {
        r := m.rows[i]
        if r.Target == target && r.Channel == ch && r.Purpose == p && !r.Consumed {
            cp := *r
            return &cp, nil
        }
    }
    return nil, repository.ErrOTPNotFound
}

func (m *memOTPStore) IncrementAttempts(_ context.Context, id uint64) (uint32, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.rows[id-1].Attempts++
    return m.rows[id-1].Attempts, nil
}

func (m *memOTPStore) Consume(_ context.Context, id uint64) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.rows[id-1].Consumed {
        return repository.ErrOTPNotFound
    }
    m.rows[id-1].Consumed = true
    return nil
}

func (m *memOTPStore) CountSince(_ context.Context, target string, t time.Time) (int, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    n := 0
    for _, r := range m.rows {
        if r.Target == target && !r.CreatedAt.Before(t) {
            n++
        }
    }
    return n, nil
}

type captureMailer struct {
    to, body string
    err      error
}

func (c *captureMailer) Send(_ context.Context, to, _, plain, _ string) error {
    c.to, c.body = to, plain
    return c.err
}

type captureSMS struct{ to, body string }

func (c *captureSMS) SendSMS(_ context.Context, to, body, _ string) error {
    c.to, c.body = to, body
    return nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func newOTPService() (*OTPService, *memOTPStore, *captureMailer, *captureSMS) {
    st := &memOTPStore{}
    m := &captureMailer{}
    sms := &captureSMS{}
    return &OTPService{
        Store:       st,
        Mailer:      m,
        SMS:         sms,
        TTL:         10 * time.Minute,
        MaxAttempts: 3,
        PerHour:     5,
        Region:      "IN",
        Cost:        4,
    }, st, m, sms
}

func TestOTPSendAndVerifyEmail(t *testing.T) {
    svc, _, m, _ := newOTPService()
    ctx := context.Background()

    target, exp, err := svc.Send(ctx, model.OTPChannelEmail, "  Asha@Example.COM ", model.OTPPurposeVerify)
    require.NoError(t, err)
    assert.Equal(t, "asha@example.com", target)
    assert.Equal(t, "asha@example.com", m.to)
    assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, time.Minute)

    code := codeRe.FindString(m.body)
    require.Len(t, code, 6)

    _, err = svc.Verify(ctx, model.OTPChannelEmail, "asha@example.com", model.OTPPurposeVerify, "000000x")
    assert.ErrorIs(t, err, ErrOTPInvalid)

    got, err := svc.Verify(ctx, model.OTPChannelEmail, "ASHA@example.com", model.OTPPurposeVerify, code)
    require.NoError(t, err)
    assert.Equal(t, "asha@example.com", got)

    // consumed codes cannot be replayed
    _, err = svc.Verify(ctx, model.OTPChannelEmail, "asha@example.com", model.OTPPurposeVerify, code)
    assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPSupersede(t *testing.T) {
    svc, _, m, _ := newOTPService()
    ctx := context.Background()

    _, _, err := svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeReset)
    require.NoError(t, err)
    first := codeRe.FindString(m.body)
    _, _, err = svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeReset)
    require.NoError(t, err)
    second := codeRe.FindString(m.body)

    if first != second {
        _, err = svc.Verify(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeReset, first)
        assert.ErrorIs(t, err, ErrOTPInvalid)
    }
    _, err = svc.Verify(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeReset, second)
    assert.NoError(t, err)
}

func TestOTPSMSNormalizesPhone(t *testing.T) {
    svc, _, _, sms := newOTPService()
    target, _, err := svc.Send(context.Background(), model.OTPChannelSMS, "98765 43210", model.OTPPurposeVerify)
    require.NoError(t, err)
    assert.Equal(t, "+919876543210", target)
    assert.Equal(t, "+919876543210", sms.to)

    _, _, err = svc.Send(context.Background(), model.OTPChannelSMS, "12", model.OTPPurposeVerify)
    assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestOTPAttemptsExhausted(t *testing.T) {
    svc, _, m, _ := newOTPService()
    ctx := context.Background()
    _, _, err := svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify)
    require.NoError(t, err)
    code := codeRe.FindString(m.body)

    for i := 0; i < 3; i++ {
        _, err = svc.Verify(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify, "bad")
        assert.ErrorIs(t, err, ErrOTPInvalid)
    }
    // the right code no longer helps
    _, err = svc.Verify(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify, code)
    assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestOTPExpired(t *testing.T) {
    svc, _, m, _ := newOTPService()
    ctx := context.Background()
    _, _, err := svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify)
    require.NoError(t, err)
    code := codeRe.FindString(m.body)

    svc.Now = func() time.Time { return time.Now().Add(11 * time.Minute) }
    _, err = svc.Verify(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify, code)
    assert.ErrorIs(t, err, ErrOTPExpired)

    _, err = svc.Verify(ctx, model.OTPChannelEmail, "nobody@b.co", model.OTPPurposeVerify, code)
    assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestOTPDeliveryFailureSurfaces(t *testing.T) {
    svc, _, m, _ := newOTPService()
    m.err = errors.New("sendgrid down")
    _, _, err := svc.Send(context.Background(), model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify)
    assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestOTPPerTargetCap(t *testing.T) {
    svc, _, _, _ := newOTPService()
    svc.PerHour = 2
    ctx := context.Background()
    for i := 0; i < 2; i++ {
        _, _, err := svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify)
        require.NoError(t, err)
    }
    _, _, err := svc.Send(ctx, model.OTPChannelEmail, "a@b.co", model.OTPPurposeVerify)
    assert.ErrorIs(t, err, ErrOTPRateLimited)
}

func TestPublisherDisabled(t *testing.T) {
    p := NewPublisher("")
    assert.False(t, p.Enabled())
    assert.ErrorIs(t, p.PublishConfirmed(context.Background(), "q", struct{}{}), ErrPublisherDisabled)
    _, ok := NewSMSSender(p).(LogSMSSender)
    assert.True(t, ok)
    _, ok = NewMailer("", "from@x.co", "X").(LogMailer)
    assert.True(t, ok)
}
