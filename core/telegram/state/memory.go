package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/warnbot/core/logger"
)

type memoryEntry[S any] struct {
	value     S
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory for the lifetime of the bot.
type MemoryStore[S any] struct {
	mu       sync.RWMutex
	sessions map[int64]memoryEntry[S]
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore[S any](opts Options) *MemoryStore[S] {
	return &MemoryStore[S]{
		sessions: make(map[int64]memoryEntry[S]),
		ttl:      opts.TTL,
		now:      time.Now,
	}
}

// Get returns the session for key if present and not expired.
func (m *MemoryStore[S]) Get(ctx context.Context, key int64) (S, bool, error) {
	m.mu.RLock()
	entry, ok := m.sessions[key]
	m.mu.RUnlock()

	var zero S
	if !ok {
		return zero, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if cur, still := m.sessions[key]; still && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.sessions, key)
		}
		m.mu.Unlock()
		logger.Debug(ctx, "session", "session.expired",
			slog.String("driver", "memory"),
			slog.Int64("chat_id", key),
		)
		return zero, false, nil
	}
	return entry.value, true, nil
}

// Set replaces the session for key.
func (m *MemoryStore[S]) Set(_ context.Context, key int64, value S) error {
	entry := memoryEntry[S]{value: value}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.sessions[key] = entry
	m.mu.Unlock()
	return nil
}

// Clear removes the session for key.
func (m *MemoryStore[S]) Clear(_ context.Context, key int64) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore[S]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
