package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/warnbot/core/bootstrap"
	"github.com/m3rciful/warnbot/core/logger"
	"github.com/m3rciful/warnbot/warnings"
)

// CatalogSeeder upserts the configured groups and warning types. Running it
// again leaves the catalog unchanged.
func CatalogSeeder(seed SeedConfig) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, storage bootstrap.Storage) error {
		catalog, ok := storage.(warnings.Catalog)
		if !ok {
			return fmt.Errorf("app: seed: storage %T is not a warnings catalog", storage)
		}

		groups := make(map[string]warnings.WarningGroup, len(seed.Groups))
		for _, g := range seed.Groups {
			if err := catalog.UpsertGroup(ctx, g); err != nil {
				return fmt.Errorf("app: seed group %q: %w", g.Name, err)
			}
			groups[g.Name] = g
		}
		for _, wt := range seed.WarningTypes {
			group, ok := groups[wt.Group]
			if !ok {
				return fmt.Errorf("app: seed warning type %q: unknown group %q", wt.Trigger, wt.Group)
			}
			info := warnings.WarningInfo{
				Trigger: wt.Trigger,
				Points:  wt.Points,
				Group:   group,
				OnWarn:  wt.OnWarn,
			}
			if err := catalog.UpsertWarningType(ctx, info); err != nil {
				return fmt.Errorf("app: seed warning type %q: %w", wt.Trigger, err)
			}
		}

		logger.SEED.Info("catalog seeded",
			slog.String("event", "seed.catalog"),
			slog.String("status", "ok"),
			slog.Int("groups", len(seed.Groups)),
			slog.Int("warning_types", len(seed.WarningTypes)),
		)
		return nil
	})
}
