package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the configuration for the advisor agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Session and storage
	SessionID      string
	StorageBackend string // memory, redis or postgres

	// LLM configuration
	LLMProvider    string // openai or ollama
	LLMEndpoint    string
	LLMModel       string
	LLMAPIKey      string
	LLMMaxTokens   int
	LLMTemperature float64

	// Engine configuration
	AnalysisIntervalSec  int
	SchedulerIntervalSec int
	TrackingEnabled      bool
	AutomationEnabled    bool
	RulesFile            string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "advisor",
		PostgresDB:                 "advisor",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     5,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "advisor-agent",
		HealthPort:                 8080,
		LogLevel:                   "info",
		SessionID:                  "default",
		StorageBackend:             "redis",
		LLMProvider:                "openai",
		LLMModel:                   "gpt-4o-mini",
		LLMMaxTokens:               800,
		LLMTemperature:             0.3,
		AnalysisIntervalSec:        30,
		SchedulerIntervalSec:       60,
		TrackingEnabled:            true,
		AutomationEnabled:          true,
	}
}

// LoadFromEnv loads configuration from environment variables with ADVISOR_ prefix.
// A .env file in the working directory is read first when present.
func (c *Config) LoadFromEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	// MQTT configuration
	setString(&c.MQTTBroker, "ADVISOR_MQTT_BROKER")
	setInt(&c.MQTTPort, "ADVISOR_MQTT_PORT")
	setString(&c.MQTTUser, "ADVISOR_MQTT_USER")
	setString(&c.MQTTPassword, "ADVISOR_MQTT_PASSWORD")
	setString(&c.MQTTClientID, "ADVISOR_MQTT_CLIENT_ID")

	// Redis configuration
	setString(&c.RedisHost, "ADVISOR_REDIS_HOST")
	setInt(&c.RedisPort, "ADVISOR_REDIS_PORT")
	setString(&c.RedisPassword, "ADVISOR_REDIS_PASSWORD")
	setInt(&c.RedisDB, "ADVISOR_REDIS_DB")

	// Postgres configuration
	setString(&c.PostgresHost, "ADVISOR_POSTGRES_HOST")
	setInt(&c.PostgresPort, "ADVISOR_POSTGRES_PORT")
	setString(&c.PostgresUser, "ADVISOR_POSTGRES_USER")
	setString(&c.PostgresPassword, "ADVISOR_POSTGRES_PASSWORD")
	setString(&c.PostgresDB, "ADVISOR_POSTGRES_DB")
	setString(&c.PostgresSSLMode, "ADVISOR_POSTGRES_SSLMODE")
	setInt(&c.PostgresMaxConnections, "ADVISOR_POSTGRES_MAX_CONNECTIONS")
	setInt(&c.PostgresMaxIdleConnections, "ADVISOR_POSTGRES_MAX_IDLE_CONNECTIONS")
	if v := os.Getenv("ADVISOR_POSTGRES_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PostgresConnMaxLifetime = d
		}
	}

	// Service configuration
	setString(&c.ServiceName, "ADVISOR_SERVICE_NAME")
	setInt(&c.HealthPort, "ADVISOR_HEALTH_PORT")
	setString(&c.LogLevel, "ADVISOR_LOG_LEVEL")
	setString(&c.SessionID, "ADVISOR_SESSION_ID")
	setString(&c.StorageBackend, "ADVISOR_STORAGE_BACKEND")

	// LLM configuration
	setString(&c.LLMProvider, "ADVISOR_LLM_PROVIDER")
	setString(&c.LLMEndpoint, "ADVISOR_LLM_ENDPOINT")
	setString(&c.LLMModel, "ADVISOR_LLM_MODEL")
	setString(&c.LLMAPIKey, "ADVISOR_LLM_API_KEY")
	if c.LLMAPIKey == "" {
		setString(&c.LLMAPIKey, "OPENAI_API_KEY")
	}
	setInt(&c.LLMMaxTokens, "ADVISOR_LLM_MAX_TOKENS")
	if v := os.Getenv("ADVISOR_LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLMTemperature = t
		}
	}

	// Engine configuration
	setInt(&c.AnalysisIntervalSec, "ADVISOR_ANALYSIS_INTERVAL_SEC")
	setInt(&c.SchedulerIntervalSec, "ADVISOR_SCHEDULER_INTERVAL_SEC")
	setBool(&c.TrackingEnabled, "ADVISOR_TRACKING_ENABLED")
	setBool(&c.AutomationEnabled, "ADVISOR_AUTOMATION_ENABLED")
	setString(&c.RulesFile, "ADVISOR_RULES_FILE")

	return nil
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on the given set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health, metrics and API HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.SessionID, "session-id", c.SessionID, "Dashboard session this agent serves")
	fs.StringVar(&c.StorageBackend, "storage", c.StorageBackend, "State storage backend (memory, redis, postgres)")

	// LLM flags
	fs.StringVar(&c.LLMProvider, "llm-provider", c.LLMProvider, "Chat completion provider (openai, ollama)")
	fs.StringVar(&c.LLMEndpoint, "llm-endpoint", c.LLMEndpoint, "LLM API base URL")
	fs.StringVar(&c.LLMModel, "llm-model", c.LLMModel, "LLM model name")
	fs.IntVar(&c.LLMMaxTokens, "llm-max-tokens", c.LLMMaxTokens, "Maximum tokens per completion")
	fs.Float64Var(&c.LLMTemperature, "llm-temperature", c.LLMTemperature, "Completion temperature")

	// Engine flags
	fs.IntVar(&c.AnalysisIntervalSec, "analysis-interval", c.AnalysisIntervalSec, "Behavior analysis interval in seconds")
	fs.IntVar(&c.SchedulerIntervalSec, "scheduler-interval", c.SchedulerIntervalSec, "Automation scheduler interval in seconds")
	fs.BoolVar(&c.TrackingEnabled, "tracking", c.TrackingEnabled, "Enable activity tracking")
	fs.BoolVar(&c.AutomationEnabled, "automation", c.AutomationEnabled, "Enable automation rule execution")
	fs.StringVar(&c.RulesFile, "rules-file", c.RulesFile, "YAML file with additional automation rules")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	switch c.StorageBackend {
	case "memory":
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("Redis host is required")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return fmt.Errorf("Redis port must be between 1 and 65535")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("Postgres host and database are required")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory, redis, or postgres)", c.StorageBackend)
	}

	switch c.LLMProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid LLM provider: %s (must be openai or ollama)", c.LLMProvider)
	}

	if c.AnalysisIntervalSec <= 0 || c.SchedulerIntervalSec <= 0 {
		return fmt.Errorf("analysis and scheduler intervals must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// LLMBaseURL returns the endpoint, defaulting to a local Ollama server for that provider.
// An empty result means the provider's own API.
func (c *Config) LLMBaseURL() string {
	if c.LLMEndpoint == "" && c.LLMProvider == "ollama" {
		return "http://localhost:11434"
	}
	return c.LLMEndpoint
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// AnalysisInterval returns the behavior analysis tick interval
func (c *Config) AnalysisInterval() time.Duration {
	return time.Duration(c.AnalysisIntervalSec) * time.Second
}

// SchedulerInterval returns the automation scheduler tick interval
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSec) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
