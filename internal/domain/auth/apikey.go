// Package auth holds API key identities used to guard admin operations.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active key matches a hash.
var ErrNotFound = errors.New("api key not found")

// Key is a validated API key identity. KeyHash is the hex HMAC-SHA256
// of the raw key with the configured pepper; raw keys are never stored.
type Key struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of active API keys by their hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}
