package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Ambiguous characters (0, O, 1, I) are left out
	referralCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength      = 8
	maxReferralCodeAttempts = 10
)

// CodeGenerator produces candidate referral codes
type CodeGenerator func() (string, error)

// GenerateReferralCode returns a random referral code
func GenerateReferralCode() (string, error) {
	var b strings.Builder
	b.Grow(referralCodeLength)

	alphabetSize := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeReferralCode trims and upper-cases a user supplied code
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// uniqueReferralCode generates codes until one is unused
func uniqueReferralCode(ctx context.Context, users UserRepository, generate CodeGenerator) (string, error) {
	for attempt := 0; attempt < maxReferralCodeAttempts; attempt++ {
		code, err := generate()
		if err != nil {
			return "", err
		}

		exists, err := users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrReferralCodeExhausted
}
