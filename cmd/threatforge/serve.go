package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/threatforge/threatforge/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the threat-modeling HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := cfg.Logger()
	manager, cleanup, err := buildManager(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.NewServer(manager, logger, api.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
