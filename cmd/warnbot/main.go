package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/m3rciful/warnbot/app"
	"github.com/m3rciful/warnbot/core/buildinfo"
	corecmd "github.com/m3rciful/warnbot/core/cmd"
	"github.com/m3rciful/warnbot/core/logger"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "warnbot",
		Usage:   "Telegram moderation bot with accumulating warnings",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config (default: $CONFIG_PATH or config.yaml)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Serve Telegram updates",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply Postgres migrations and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					defer shutdownLogger()
					return app.Migrate(ctx, cfg)
				},
			},
			{
				Name:  "seed",
				Usage: "Upsert the configured warning groups and types and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					defer shutdownLogger()
					return app.SeedCatalog(ctx, cfg)
				},
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Println(buildinfo.String())
					return nil
				},
			},
		},
	}

	return cmd.Run(context.Background(), os.Args)
}

func serve(ctx context.Context, c *cli.Command) error {
	return corecmd.Run(ctx, corecmd.Options{
		ConfigPath:        c.String("config"),
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(ctx, cfg.(*app.Config))
		},
	})
}

func loadConfig(c *cli.Command) (*app.Config, error) {
	return app.LoadConfig(corecmd.ResolveConfigPath(c.String("config"), "", defaultConfigPath))
}

func shutdownLogger() {
	if err := logger.Shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}
