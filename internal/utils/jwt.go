package utils // package utils provides session token, hashing and normalization helpers

import (
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// Claims is the session carried by every authenticated request.  Subject
// holds the decimal user id and ID (jti) a random UUID so that a single
// token can be revoked on logout.
type Claims struct {
    UserID uint64 `json:"userId"`
    Email  string `json:"email"`
    Role   string `json:"role"`
    OrgID  string `json:"orgId"`
    jwt.RegisteredClaims
}

// SessionToken is a signed token together with its expiry.
type SessionToken struct {
    Token string    `json:"token"`
    Exp   time.Time `json:"expiresAt"`
}

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// shape checks.
var ErrInvalidToken = errors.New("invalid token")

// NewSessionToken builds and signs an HS256 session token valid for ttl.
func NewSessionToken(secret string, userID uint64, email, role, orgID string, ttl time.Duration) (SessionToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := &Claims{
        UserID: userID,
        Email:  email,
        Role:   role,
        OrgID:  orgID,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            ID:        uuid.NewString(),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
            NotBefore: jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies the signature and expiry of raw and returns
// its claims.
func ParseSessionToken(secret, raw string) (*Claims, error) {
    token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
        }
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
    }
    claims, ok := token.Claims.(*Claims)
    if !ok || !token.Valid || claims.UserID == 0 || claims.ID == "" || claims.OrgID == "" {
        return nil, ErrInvalidToken
    }
    return claims, nil
}

// ExpiresAtTime returns the token expiry or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
    if c.ExpiresAt == nil {
        return time.Time{}
    }
    return c.ExpiresAt.Time
}
