package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/types"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 15, cfg.Engine.MaxRetry)
	assert.Equal(t, 40, cfg.Engine.MaxTurns)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
llm:
  provider: openai
  model: gpt-4o
engine:
  max_retry: 3
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Engine.MaxRetry)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "untouched fields keep defaults")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path, true)
	assert.Equal(t, types.CONFIG_PARSE_FAILED, types.CodeOf(err))
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0o644))

	t.Setenv("THREATFORGE_LLM_MODEL", "from-env")
	t.Setenv("THREATFORGE_PORT", "7000")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	scenarios := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"missing provider", func(c *Config) { c.LLM.Provider = "" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 1.5 }},
		{"negative limit", func(c *Config) { c.Engine.MaxRetry = -1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			cfg := Default()
			sc.mutate(&cfg)
			err := cfg.Validate()
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestEngineLimitsConversion(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxRetry = 7
	cfg.Engine.MaxTurns = 11

	limits := cfg.EngineLimits()
	assert.Equal(t, 7, limits.MaxRetry)
	assert.Equal(t, 11, limits.MaxTurns)
}
