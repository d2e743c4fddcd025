package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/threatforge/threatforge/internal/blob"
	"github.com/threatforge/threatforge/internal/config"
	"github.com/threatforge/threatforge/internal/engine"
	"github.com/threatforge/threatforge/internal/job"
	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/llm/providers"
	"github.com/threatforge/threatforge/internal/store"
)

var (
	configFile string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "threatforge",
	Short: "ThreatForge - LLM-driven STRIDE threat modeling",
	Long: `ThreatForge builds security threat catalogs from system descriptions.
Submissions run as asynchronous jobs: the engine summarizes the
architecture, inventories assets and data flows, then iterates on a
STRIDE threat catalog until gap analysis declares it complete.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (config.Config, error) {
	path := configFile
	explicit := path != ""
	if path == "" {
		path = os.Getenv("THREATFORGE_CONFIG")
		explicit = path != ""
	}

	cfg, err := config.Load(path, explicit)
	if err != nil {
		return config.Config{}, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// buildManager assembles the provider, engine, store, and job manager
// from configuration. The returned cleanup closes the store and drains
// running jobs.
func buildManager(cfg config.Config, logger *slog.Logger) (*job.Manager, func(), error) {
	provider, err := providers.New(cfg.LLM.Provider, providers.Config{
		APIKey:       cfg.LLM.APIKey,
		DefaultModel: cfg.LLM.Model,
		BaseURL:      cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	client := llm.NewClient(provider, cfg.LLM.Model,
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens))
	eng := engine.New(client, cfg.EngineLimits(), logger)

	var jobStore job.Store
	if cfg.Database.Path != "" {
		jobStore, err = store.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
	} else {
		jobStore = job.NewMemoryStore()
	}

	var resolver blob.Resolver
	if cfg.Blob.Dir != "" {
		resolver = blob.NewFileResolver(cfg.Blob.Dir, cfg.Blob.MaxBytes, logger)
	}

	manager := job.NewManager(jobStore, eng, resolver, logger)
	cleanup := func() {
		manager.Close()
		if err := jobStore.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}

	return manager, cleanup, nil
}
