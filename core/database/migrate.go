package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/warnbot/core/logger"
)

const migrationSuffix = ".up.sql"

// migrationFile is one "NNN_name.up.sql" file of a migration source.
type migrationFile struct {
	name    string
	version uint64
}

// scanMigrations lists the up migrations at the root of fsys by version.
func scanMigrations(fsys fs.FS) []migrationFile {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), migrationSuffix) {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		version, _ := strconv.ParseUint(prefix, 10, 64)
		files = append(files, migrationFile{name: e.Name(), version: version})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		return strings.Compare(a.name, b.name)
	})
	return files
}

// between names the files that move the schema from version from to to.
func between(files []migrationFile, from, to uint64) []string {
	var names []string
	for _, f := range files {
		if f.version > from && f.version <= to {
			names = append(names, f.name)
		}
	}
	return names
}

// RunMigrations brings the schema to the newest up migration in fsys. It
// waits for the database like Connect does; migrate itself never retries.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS) error {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	_ = db.Close()

	files := scanMigrations(fsys)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.resolve", logger.ListAttrs("files", names, 6)...)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	if errors.Is(upErr, migrate.ErrNoChange) {
		upErr = nil
	}
	to, _, _ := m.Version()

	attrs := []slog.Attr{
		slog.String("status", logger.Status(upErr)),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if upErr != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "migrate.apply",
			append(attrs, slog.String("err", upErr.Error()))...)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}
	applied := between(files, uint64(from), uint64(to))
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "migrate.apply",
		append(attrs, logger.ListAttrs("applied", applied, 6)...)...)
	return nil
}
