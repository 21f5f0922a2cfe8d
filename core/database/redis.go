package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/rueidis"

	"github.com/m3rciful/warnbot/core/logger"
)

// ConnectRedis creates a rueidis client and checks it with PING.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.Addr()},
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  "warnbot",
		// sessions are read with plain GET; server-assisted caching is unused
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", "redis"),
		slog.String("host", cfg.Addr()),
		slog.Int("db", cfg.DB),
	)
	return client, nil
}
