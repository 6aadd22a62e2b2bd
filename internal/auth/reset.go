package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	ResetTokenBytes = 32
	ResetTokenTTL   = 10 * time.Minute
)

type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// GenerateResetToken returns a random single-use token. Only Hash is meant to
// be persisted; Raw goes to the user out of band.
func GenerateResetToken(now time.Time) (ResetToken, error) {
	const op = "auth.GenerateResetToken"

	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, fmt.Errorf("%s: %w", op, err)
	}

	raw := hex.EncodeToString(b)

	return ResetToken{
		Raw:       raw,
		Hash:      HashResetToken(raw),
		ExpiresAt: now.Add(ResetTokenTTL),
	}, nil
}

// HashResetToken is the lookup digest stored for a raw reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
