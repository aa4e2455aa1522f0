// Package store keeps serialized fragments for their freshness window.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for missing or expired fragments.
	ErrNotFound = errors.New("store: fragment not found")
	// ErrEmptyKey is returned for operations on an empty key.
	ErrEmptyKey = errors.New("store: empty key")
)

// Store maps cache keys to payloads. ttl <= 0 stores without expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, payload string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
