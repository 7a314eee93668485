package utils

import (
    "regexp"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func TestSessionTokenRoundTrip(t *testing.T) {
    tok, err := NewSessionToken(testSecret, 42, "asha@example.com", "manager", "org-1", 7*24*time.Hour)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), tok.Exp, time.Minute)

    claims, err := ParseSessionToken(testSecret, tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), claims.UserID)
    assert.Equal(t, "42", claims.Subject)
    assert.Equal(t, "manager", claims.Role)
    assert.Equal(t, "org-1", claims.OrgID)
    assert.Len(t, claims.ID, 36)
    assert.WithinDuration(t, tok.Exp, claims.ExpiresAtTime(), time.Second)
}

func TestParseSessionToken_Rejects(t *testing.T) {
    tok, err := NewSessionToken(testSecret, 1, "a@b.co", "salesperson", "org-1", time.Hour)
    require.NoError(t, err)

    _, err = ParseSessionToken("another-secret", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    expired, err := NewSessionToken(testSecret, 1, "a@b.co", "salesperson", "org-1", -time.Minute)
    require.NoError(t, err)
    _, err = ParseSessionToken(testSecret, expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    _, err = ParseSessionToken(testSecret, "not.a.token")
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
    hash, err := HashPassword("correct horse", 4)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "correct horse"))
    assert.False(t, VerifyPassword(hash, "battery staple"))
}

func TestNewOTPCode(t *testing.T) {
    re := regexp.MustCompile(`^\d{6}$`)
    seen := map[string]bool{}
    for i := 0; i < 50; i++ {
        code, err := NewOTPCode()
        require.NoError(t, err)
        assert.Regexp(t, re, code)
        seen[code] = true
    }
    assert.Greater(t, len(seen), 1)
}

func TestNormalizePhone(t *testing.T) {
    got, err := NormalizePhone("98765 43210", "")
    require.NoError(t, err)
    assert.Equal(t, "+919876543210", got)

    got, err = NormalizePhone("+1 650-253-0000", "IN")
    require.NoError(t, err)
    assert.Equal(t, "+16502530000", got)

    for _, bad := range []string{"", "12", "call me"} {
        _, err := NormalizePhone(bad, "IN")
        assert.ErrorIs(t, err, ErrInvalidPhone, bad)
    }
}

func TestNormalizeEmail(t *testing.T) {
    assert.Equal(t, "asha@example.com", NormalizeEmail("  Asha@Example.COM "))
}
