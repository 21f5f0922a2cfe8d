package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/bootstrap"
	coredatabase "github.com/m3rciful/warnbot/core/database"
	"github.com/m3rciful/warnbot/core/logger"
	coretelegram "github.com/m3rciful/warnbot/core/telegram"
	"github.com/m3rciful/warnbot/core/telegram/router"
	"github.com/m3rciful/warnbot/migrations"
	"github.com/m3rciful/warnbot/warnings"
)

// App owns the opened infrastructure and the warnings services.
type App struct {
	cfg     *Config
	boot    *bootstrap.Result
	storage *Storage

	engine *warnings.Engine
	setup  *warnings.Setup
}

// Bootstrap initializes the logger, storage and services, then seeds the catalog.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	boot, err := bootstrap.Run(ctx, bootOptions(cfg))
	if err != nil {
		return nil, err
	}
	storage, err := OpenStorage(ctx, cfg, boot.DB)
	if err != nil {
		_ = boot.Close()
		return nil, err
	}
	a := &App{
		cfg:     cfg,
		boot:    boot,
		storage: storage,
		engine:  warnings.NewEngine(storage.Catalog, storage.Ledger),
		setup:   warnings.NewSetup(storage.Catalog, storage.Sessions),
	}
	if err := bootstrap.Seed(ctx, storage.Catalog, a.Modules().Seeders...); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func bootOptions(cfg *Config) bootstrap.Options {
	opts := bootstrap.Options{Config: &cfg.Config}
	if cfg.Storage.Driver == DriverPostgres {
		db := cfg.Database
		opts.Database = &db
		opts.Migrations = migrations.FS
	}
	return opts
}

// Migrate applies the Postgres migrations without starting the bot.
func Migrate(ctx context.Context, cfg *Config) error {
	if cfg.Storage.Driver != DriverPostgres {
		return errors.New("app: migrations only apply to the postgres storage driver")
	}
	if err := logger.InitLogger(&cfg.Config); err != nil {
		return err
	}
	return coredatabase.RunMigrations(ctx, cfg.Database, migrations.FS)
}

// SeedCatalog runs the seeders against the configured storage and exits.
func SeedCatalog(ctx context.Context, cfg *Config) error {
	a, err := Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Close()
}

// Modules lists the optional bootstrap hooks of the bot.
func (a *App) Modules() bootstrap.Modules {
	return bootstrap.Modules{Seeders: []bootstrap.Seeder{CatalogSeeder(a.cfg.Seed)}}
}

// TelegramRunOptions wires registry, middlewares and routes for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config),
		Routes: func(bot *tele.Bot) ([]coretelegram.Route, error) {
			return a.routes(reg, bot)
		},
	}, nil
}

// botAPI is everything routes need from *tele.Bot.
type botAPI interface {
	BotAPI
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

func (a *App) routes(reg *coretelegram.Registry, bot botAPI) ([]coretelegram.Route, error) {
	h := NewHandlers(a.engine, a.setup, NewOutbound(bot), bot, a.cfg.Telegram.AdminID)
	if err := h.Register(reg); err != nil {
		return nil, err
	}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		Members: bot,
	})
	routes = append(routes, router.TextRoutes(h, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg))
	return routes, nil
}

// Close releases storage and the database handle.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.storage != nil {
		errs = append(errs, a.storage.Close(ctx))
	}
	errs = append(errs, a.boot.Close())
	err := errors.Join(errs...)
	if err == nil {
		logger.L.With("component", "app").Info("storage closed",
			slog.String("event", "shutdown"),
			slog.String("status", "ok"),
		)
	}
	return err
}
