package utils

import (
    "errors"
    "strings"

    "github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned for numbers that do not parse or are not
// valid in their region.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts phone to E.164.  Numbers without a country prefix
// are read in region (IN when empty).
func NormalizePhone(phone, region string) (string, error) {
    phone = strings.TrimSpace(phone)
    if phone == "" {
        return "", ErrInvalidPhone
    }
    if region == "" {
        region = "IN"
    }
    parsed, err := phonenumbers.Parse(phone, region)
    if err != nil {
        return "", ErrInvalidPhone
    }
    if !phonenumbers.IsValidNumber(parsed) {
        return "", ErrInvalidPhone
    }
    return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}
