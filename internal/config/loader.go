package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/threatforge/threatforge/internal/blob"
	"github.com/threatforge/threatforge/internal/engine"
	"github.com/threatforge/threatforge/internal/types"
)

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "",
			BusyTimeout: 5 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.2,
			MaxTokens:   8192,
		},
		Engine: EngineConfig{
			MaxRetry:           engine.DefaultMaxRetry,
			MaxAddThreatsUses:  engine.DefaultMaxAddThreatsUses,
			MaxGapAnalysisUses: engine.DefaultMaxGapAnalysisUses,
			MaxTurns:           engine.DefaultMaxTurns,
		},
		Blob: BlobConfig{
			MaxBytes: blob.DefaultMaxBytes,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional YAML file, applies
// THREATFORGE_* environment overrides, and validates the result. A
// missing file at the default location is not an error; an explicitly
// requested file that does not exist is.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// fall through to defaults
		case err != nil:
			return Config{}, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse config file", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays THREATFORGE_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("THREATFORGE_HOST", &cfg.Server.Host)
	setInt("THREATFORGE_PORT", &cfg.Server.Port)
	setString("THREATFORGE_DB_PATH", &cfg.Database.Path)
	setString("THREATFORGE_LLM_PROVIDER", &cfg.LLM.Provider)
	setString("THREATFORGE_LLM_MODEL", &cfg.LLM.Model)
	setString("THREATFORGE_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("THREATFORGE_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setInt("THREATFORGE_MAX_RETRY", &cfg.Engine.MaxRetry)
	setInt("THREATFORGE_MAX_TURNS", &cfg.Engine.MaxTurns)
	setString("THREATFORGE_BLOB_DIR", &cfg.Blob.Dir)
	setString("THREATFORGE_LOG_LEVEL", &cfg.Logging.Level)
	setString("THREATFORGE_LOG_FORMAT", &cfg.Logging.Format)
}

// Validate rejects configurations the process could not run with.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "server port out of range")
	}
	if c.LLM.Provider == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm provider is required")
	}
	if c.LLM.Model == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm temperature must be between 0 and 1")
	}
	if c.Engine.MaxRetry < 0 || c.Engine.MaxTurns < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "engine limits must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "unknown log level: "+c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "unknown log format: "+c.Logging.Format)
	}

	return nil
}

// EngineLimits converts the engine section into engine.Limits.
func (c Config) EngineLimits() engine.Limits {
	return engine.Limits{
		MaxRetry:           c.Engine.MaxRetry,
		MaxAddThreatsUses:  c.Engine.MaxAddThreatsUses,
		MaxGapAnalysisUses: c.Engine.MaxGapAnalysisUses,
		MaxTurns:           c.Engine.MaxTurns,
	}
}

// Logger builds the process logger from the logging section.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(c.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
