// Package metadata is the durable key–value store of the client. It holds
// session tokens and the serialized cart.
package metadata

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("metadata key not found")

type Repository interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
