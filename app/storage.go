package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coredatabase "github.com/m3rciful/warnbot/core/database"
	"github.com/m3rciful/warnbot/core/logger"
	"github.com/m3rciful/warnbot/core/telegram/state"
	"github.com/m3rciful/warnbot/warnings"
	"github.com/m3rciful/warnbot/warnings/memstore"
	"github.com/m3rciful/warnbot/warnings/mongostore"
	"github.com/m3rciful/warnbot/warnings/pgstore"
)

// Storage is the opened catalog, ledger and session store.
type Storage struct {
	Catalog  warnings.Catalog
	Ledger   warnings.Ledger
	Sessions warnings.SessionStore

	closers []func(context.Context) error
}

// Close releases every connection Storage opened itself, last opened first.
func (s *Storage) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStorage builds the catalog and ledger for cfg.Storage.Driver and the
// session store for cfg.Session.Driver. db is the Postgres handle opened by
// bootstrap and is only used by the postgres driver.
func OpenStorage(ctx context.Context, cfg *Config, db *sqlx.DB) (*Storage, error) {
	s := &Storage{}
	if err := s.openWarnings(ctx, cfg, db); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	if err := s.openSessions(ctx, cfg); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	logger.DB.Info("storage ready",
		slog.String("event", "storage.open"),
		slog.String("status", "ok"),
		slog.String("driver", cfg.Storage.Driver),
		slog.String("session", cfg.Session.Driver),
	)
	return s, nil
}

func (s *Storage) openWarnings(ctx context.Context, cfg *Config, db *sqlx.DB) error {
	switch cfg.Storage.Driver {
	case DriverPostgres:
		if db == nil {
			return errors.New("app: postgres driver selected but no database connection")
		}
		store := pgstore.New(db)
		s.Catalog, s.Ledger = store, store
	case DriverMongo:
		mdb, err := coredatabase.ConnectMongo(ctx, cfg.Mongo.MongoConfig)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(ctx context.Context) error {
			return mdb.Client().Disconnect(ctx)
		})
		store := mongostore.New(mdb, mongostore.Options{Transactions: cfg.Mongo.Transactions})
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("app: mongo indexes: %w", err)
		}
		s.Catalog, s.Ledger = store, store
	case DriverMemory:
		store := memstore.New()
		s.Catalog, s.Ledger = store, store
	default:
		return fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

func (s *Storage) openSessions(ctx context.Context, cfg *Config) error {
	opts := state.Options{TTL: time.Duration(cfg.Session.TTLSeconds) * time.Second}
	switch cfg.Session.Driver {
	case SessionRedis:
		client, err := coredatabase.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(context.Context) error {
			client.Close()
			return nil
		})
		s.Sessions = state.NewRedisStore[warnings.SetupWarnState](client, cfg.Session.Prefix, opts)
	default:
		s.Sessions = state.NewMemoryStore[warnings.SetupWarnState](opts)
	}
	return nil
}
