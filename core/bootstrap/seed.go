package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/warnbot/core/logger"
)

// Storage is the store a bot's seeders write to; each seeder asserts the
// concrete type it needs.
type Storage any

// Seeder loads reference data into storage. Seeders run on every start and
// must be idempotent.
type Seeder interface {
	Seed(ctx context.Context, storage Storage) error
}

// SeederFunc lets a plain function act as a Seeder.
type SeederFunc func(ctx context.Context, storage Storage) error

// Seed calls f.
func (f SeederFunc) Seed(ctx context.Context, storage Storage) error {
	return f(ctx, storage)
}

// Modules are the optional startup hooks a bot contributes.
type Modules struct {
	Seeders []Seeder
}

// Seed runs seeders in order against storage. Nil entries are skipped and
// the first failure stops the run.
func Seed(ctx context.Context, storage Storage, seeders ...Seeder) error {
	start := time.Now()
	ran := 0
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, storage); err != nil {
			logger.LogEvent(ctx, logger.SEED, slog.LevelError, "seed",
				slog.String("status", "fail"),
				slog.Int("seeder", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		ran++
	}
	if ran > 0 {
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "seed",
			slog.String("status", "ok"),
			slog.Int("seeders", ran),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return nil
}
