package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/m3rciful/warnbot/core/logger"
)

// ConnectMongo opens a MongoDB client, waits until the primary answers a
// ping and returns the configured database.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, errors.New("mongo: uri and database are required")
	}
	timeout := 5 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	start := time.Now()
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout).
		SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	attempts := 0
	ping := func() error {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Ping(pingCtx, readpref.Primary())
	}
	notify := func(err error, wait time.Duration) {
		logger.LogEvent(ctx, logger.DB, slog.LevelWarn, "db.connect",
			slog.String("status", "retry"),
			slog.String("driver", "mongo"),
			slog.Int("attempts", attempts),
			slog.Duration("wait", wait),
			slog.String("err", err.Error()),
		)
	}
	attrs := []slog.Attr{
		slog.String("driver", "mongo"),
		slog.String("db", cfg.Database),
	}
	if err := backoff.RetryNotify(ping, readyBackoff(ctx, cfg.ReadyTimeoutSeconds), notify); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)
	return client.Database(cfg.Database), nil
}
