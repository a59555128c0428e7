// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is a string-keyed store for JSON documents. Get returns nil bytes
// for a missing key.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	Close() error
}

// GetJSON reads and decodes the value stored at key. The second return value
// reports whether the key was present.
func GetJSON[T any](ctx context.Context, p Provider, key string, out *T) (bool, error) {
	raw, err := p.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode value for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON[T any](ctx context.Context, p Provider, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	return p.Set(ctx, key, raw)
}
