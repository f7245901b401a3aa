// Package auth guards administrative chat commands.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when an admin secret is not configured.
var ErrEmptySecret = errors.New("admin secret must not be empty")

// AdminSecret holds the admin password in memory as a bcrypt hash so the
// plain text does not linger after startup.
type AdminSecret struct {
	hash []byte
}

// NewAdminSecret hashes password with the given bcrypt cost. A cost of zero
// selects bcrypt.DefaultCost.
func NewAdminSecret(password string, cost int) (*AdminSecret, error) {
	if password == "" {
		return nil, ErrEmptySecret
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin secret: %w", err)
	}
	return &AdminSecret{hash: hash}, nil
}

// Verify reports whether password matches the admin secret.
func (s *AdminSecret) Verify(password string) bool {
	if s == nil || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.hash, []byte(password)) == nil
}
