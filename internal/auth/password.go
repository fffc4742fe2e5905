package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost balances login latency against brute-force cost.
	DefaultBcryptCost = 12

	// MaxPasswordLength caps input before bcrypt sees it.
	MaxPasswordLength = 128
)

// PasswordManager handles password hashing and verification.
type PasswordManager struct {
	cost int
}

func NewPasswordManager(cost int) *PasswordManager {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	return &PasswordManager{cost: cost}
}

// Hash hashes a password with bcrypt.
func (p *PasswordManager) Hash(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("password too long")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify reports whether the password matches the stored hash.
func (p *PasswordManager) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
