package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/chattxt/internal/api"
	"github.com/MikeSquared-Agency/chattxt/internal/config"
	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/hermes"
	"github.com/MikeSquared-Agency/chattxt/internal/logging"
	"github.com/MikeSquared-Agency/chattxt/internal/metrics"
	"github.com/MikeSquared-Agency/chattxt/internal/processor"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP service",
		Long:  "Serves POST /api/v1/convert, health, status and metrics. Conversion history (DATABASE_URL) and events (NATS_URL) are enabled when configured.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default $CHATTXT_PORT or 8760)")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormatOr("json"), os.Stdout)
	slog.SetDefault(logger)

	logger.Info("chattxt starting", "port", cfg.Port, "version", version)

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Database (optional)
	var (
		recorder processor.Recorder
		history  api.History
	)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder, history = db, db
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, conversion history disabled")
	}

	// NATS/Hermes (optional)
	var (
		publisher    processor.Publisher
		hermesClient *hermes.Client
	)
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(context.WithoutCancel(ctx), cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS_URL not set, conversion events disabled")
	}

	proc := processor.New(convert.Options{
		Location:    loc,
		BaseURL:     cfg.BaseURL,
		Concurrency: cfg.Concurrency,
	}, m, recorder, publisher, logger)

	if hermesClient != nil {
		if err := hermesClient.SubscribeConvertRequests(proc.HandleConvertRequest); err != nil {
			return fmt.Errorf("subscribe convert requests: %w", err)
		}
		if err := hermesClient.Announce(cfg.Port, version); err != nil {
			logger.Warn("failed to publish registration", "error", err)
		}
	}

	srv := api.NewServer(api.Options{
		Port:           cfg.Port,
		APIToken:       cfg.APIToken,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Gatherer:       reg,
	}, proc, history, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("chattxt ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("chattxt stopped")
	return nil
}
