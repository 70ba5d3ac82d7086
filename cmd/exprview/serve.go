package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"exprview/adapters/postgres"
	"exprview/internal"
	"exprview/internal/container"
	"exprview/ui"

	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Listen port (overrides PORT)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply pending PostgreSQL migrations before serving",
			},
			&cli.DurationFlag{
				Name:  "janitor-interval",
				Usage: "How often idle sessions and expired downloads are swept",
				Value: time.Minute,
			},
		}, dataFlags...),
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logger := internal.DefaultLogger.WithComponent("serve")
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.String("port")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := appContainer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown: %v", err)
		}
	}()

	if c.Bool("migrate") {
		if appContainer.DB == nil {
			return fmt.Errorf("--migrate needs a PostgreSQL data or snapshot driver")
		}
		n, err := postgres.NewMigrator(appContainer.DB).Up(ctx)
		if err != nil {
			return err
		}
		logger.Info("Applied %d migrations", n)
	}

	appContainer.StartJanitor(ctx, c.Duration("janitor-interval"))

	server := ui.NewServer(ui.Options{
		Service:         appContainer.Service,
		LocalDownloads:  appContainer.LocalDownloads,
		DefaultPageSize: cfg.Engine.DefaultPageSize,
		GinMode:         cfg.Server.GinMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
