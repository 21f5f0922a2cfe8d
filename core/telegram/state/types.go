package state

import (
	"context"
	"time"
)

// Store keeps one session value per conversation key. Get reports ok=false
// when no session exists, so absence never relies on a zero value.
type Store[S any] interface {
	Get(ctx context.Context, key int64) (S, bool, error)
	Set(ctx context.Context, key int64, value S) error
	Clear(ctx context.Context, key int64) error
}

// Options tune a store.
type Options struct {
	// TTL expires idle sessions; 0 keeps them until cleared.
	TTL time.Duration
}
