// Package storage defines the key/value store user overrides are kept in.
package storage

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("store is closed")

// Store is a string key/value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
