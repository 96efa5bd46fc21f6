package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.AnalysisIntervalSec)
	assert.Equal(t, 60, cfg.SchedulerIntervalSec)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADVISOR_SESSION_ID", "tab-42")
	t.Setenv("ADVISOR_REDIS_PORT", "6380")
	t.Setenv("ADVISOR_TRACKING_ENABLED", "false")
	t.Setenv("ADVISOR_LLM_TEMPERATURE", "0.9")
	t.Setenv("ADVISOR_REDIS_DB", "not-a-number")

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "tab-42", cfg.SessionID)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.False(t, cfg.TrackingEnabled)
	assert.InDelta(t, 0.9, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 0, cfg.RedisDB, "unparseable values keep the default")
}

func TestRegisterFlags(t *testing.T) {
	cfg := NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"--storage=postgres", "--analysis-interval=5", "--automation=false"}))
	assert.Equal(t, "postgres", cfg.StorageBackend)
	assert.Equal(t, 5, cfg.AnalysisIntervalSec)
	assert.False(t, cfg.AutomationEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"memory backend ignores redis", func(c *Config) { c.StorageBackend = "memory"; c.RedisHost = "" }, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "localstorage" }, true},
		{"unknown provider", func(c *Config) { c.LLMProvider = "bard" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, true},
		{"empty session", func(c *Config) { c.SessionID = "" }, true},
		{"zero interval", func(c *Config) { c.AnalysisIntervalSec = 0 }, true},
		{"postgres without db", func(c *Config) { c.StorageBackend = "postgres"; c.PostgresDB = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLLMBaseURL(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.LLMBaseURL())

	cfg.LLMProvider = "ollama"
	assert.Equal(t, "http://localhost:11434", cfg.LLMBaseURL())

	cfg.LLMEndpoint = "http://gpu-box:11434"
	assert.Equal(t, "http://gpu-box:11434", cfg.LLMBaseURL())
}
