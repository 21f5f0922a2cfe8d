package state

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"

	"github.com/m3rciful/warnbot/core/logger"
)

// RedisStore keeps sessions as JSON strings in Redis so conversations
// survive restarts and can be shared by several bot replicas.
type RedisStore[S any] struct {
	client rueidis.Client
	prefix string
	opts   Options
}

// NewRedisStore constructs a Redis-backed Store. Keys are prefix + ":" + key.
func NewRedisStore[S any](client rueidis.Client, prefix string, opts Options) *RedisStore[S] {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore[S]{client: client, prefix: prefix, opts: opts}
}

func (r *RedisStore[S]) key(key int64) string {
	return r.prefix + ":" + strconv.FormatInt(key, 10)
}

// Get loads and decodes the session for key.
func (r *RedisStore[S]) Get(ctx context.Context, key int64) (S, bool, error) {
	var zero S
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(r.key(key)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("state: redis get: %w", err)
	}
	var value S
	if err := sonic.Unmarshal(raw, &value); err != nil {
		// An undecodable session cannot be resumed; report it as absent.
		logger.LogEvent(ctx, logger.Session, slog.LevelWarn, "session.decode",
			slog.String("status", "fail"),
			slog.String("driver", "redis"),
			slog.Int64("chat_id", key),
			slog.String("err", err.Error()),
		)
		return zero, false, nil
	}
	return value, true, nil
}

// Set encodes and stores value, applying the configured TTL.
func (r *RedisStore[S]) Set(ctx context.Context, key int64, value S) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	set := r.client.B().Set().Key(r.key(key)).Value(rueidis.BinaryString(data))
	if r.opts.TTL > 0 {
		err = r.client.Do(ctx, set.Ex(r.opts.TTL).Build()).Error()
	} else {
		err = r.client.Do(ctx, set.Build()).Error()
	}
	if err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

// Clear deletes the session for key.
func (r *RedisStore[S]) Clear(ctx context.Context, key int64) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}
