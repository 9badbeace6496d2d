// Package auth provides the authentication primitives: bcrypt password
// hashing, JWT session tokens, the Google OAuth provider, and the middleware
// that guards protected routes.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 lands around 250ms per hash
// on current server hardware — slow enough to hurt brute-force attempts,
// fast enough not to hurt sign-in.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct rather than free functions so the cost can be injected:
// tests run at the bcrypt minimum (cost 4) to avoid paying ~250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom bcrypt
// cost. Intended for tests; production code should use NewPasswordService.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the plaintext password with bcrypt. The output embeds the
// randomly generated salt and the cost, so it is stored as a single column
// and decoded by Verify without any extra bookkeeping.
//
// Passwords over 72 bytes are rejected explicitly — bcrypt would silently
// truncate them otherwise.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash. It
// returns nil on a match and a non-nil error otherwise. The comparison is
// constant-time inside bcrypt, so mismatches are not distinguishable by
// response timing.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
