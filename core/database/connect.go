package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/warnbot/core/logger"
)

// Connect waits for Postgres to accept connections, configures the pool and
// returns the handle.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	attempts := 0
	var db *sqlx.DB
	op := func() error {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		conn, err := sqlx.ConnectContext(pingCtx, "postgres", cfg.DSN())
		if err != nil {
			return err
		}
		db = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.DB.Warn("db not ready",
			slog.String("event", "db.connect"),
			slog.String("status", "retry"),
			slog.String("driver", "postgres"),
			slog.Int("attempts", attempts),
			slog.Duration("wait", wait),
			slog.String("err", err.Error()),
		)
	}
	if err := backoff.RetryNotify(op, readyBackoff(ctx, cfg.ReadyTimeoutSeconds), notify); err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", "postgres"),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return db, nil
}

func readyBackoff(ctx context.Context, timeoutSeconds int) backoff.BackOffContext {
	timeout := 30 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(timeout),
	), ctx)
}
