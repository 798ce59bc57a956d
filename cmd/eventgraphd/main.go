package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/config"
	"github.com/meikuraledutech/eventgraph/logging"
	"github.com/meikuraledutech/eventgraph/memstore"
	"github.com/meikuraledutech/eventgraph/postgres"
	"github.com/meikuraledutech/eventgraph/server"
	"github.com/meikuraledutech/eventgraph/templates"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string
	cmd := &cobra.Command{
		Use:          "eventgraphd",
		Short:        "Serve the pipeline compiler and inference record store over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	var store eventgraph.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
		logger.Info("using postgres store")
	} else {
		store = memstore.New()
		logger.Warn("no databaseUrl configured, records are kept in memory")
	}
	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	catalogue, err := templates.Load(cfg.TemplatesDir)
	if err != nil {
		return err
	}
	logger.Info("templates loaded", "count", len(catalogue.List()))

	app, err := server.New(server.Options{
		Store:      store,
		Compositor: eventgraph.CheckingCompositor{MaxRecords: cfg.Compositor.MaxRecords},
		Templates:  catalogue,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Listen)
	return app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true})
}
