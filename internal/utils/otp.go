package utils

import (
    "crypto/rand"
    "fmt"
    "math/big"
)

var otpMax = big.NewInt(1_000_000)

// NewOTPCode returns a uniformly random six digit code, zero padded.
func NewOTPCode() (string, error) {
    n, err := rand.Int(rand.Reader, otpMax)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("%06d", n.Int64()), nil
}
