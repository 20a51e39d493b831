package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diffsec/vectorcore/internal/collections"
	"github.com/diffsec/vectorcore/internal/config"
	"github.com/diffsec/vectorcore/internal/httpapi"
	"github.com/diffsec/vectorcore/internal/logging"
)

const shutdownDrainTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port     int
		httpPort int
		dataDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vector search HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := config.Flags{
				Port:        port,
				HTTPPort:    httpPort,
				DataDir:     dataDir,
				PortSet:     cmd.Flags().Changed("port"),
				HTTPPortSet: cmd.Flags().Changed("http-port"),
				DataDirSet:  cmd.Flags().Changed("data"),
			}
			return runServe(flags)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gRPC port (accepted, unused)")
	cmd.Flags().IntVar(&httpPort, "http-port", 50052, "HTTP listener port")
	cmd.Flags().StringVar(&dataDir, "data", "./data", "data directory for collection persistence")

	return cmd
}

func runServe(flags config.Flags) error {
	logging.Setup(logging.DefaultConfig())
	cfg := config.Resolve(flags)

	manager, err := collections.NewManager(cfg.DataDir, collections.WithDefaults(collections.Defaults{
		M:              cfg.DefaultM,
		EfConstruction: cfg.DefaultEfConstruction,
		EfSearch:       cfg.DefaultEfSearch,
		MaxElements:    cfg.DefaultMaxElements,
	}))
	if err != nil {
		slog.Error("failed to construct collection manager", slog.Any("error", err))
		return fmt.Errorf("construct collection manager: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := httpapi.NewServer(addr, manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", addr), slog.String("data_dir", cfg.DataDir))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server failed", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownDrainTimeout)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			slog.Error("error during shutdown drain", slog.Any("error", err))
		}
	}

	if err := manager.SaveAll(); err != nil {
		slog.Error("save_all failed on shutdown", slog.Any("error", err))
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
