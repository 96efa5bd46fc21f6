package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/ea-advisor/internal/actions"
	"github.com/saaga0h/ea-advisor/internal/advisor"
	"github.com/saaga0h/ea-advisor/internal/api"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/metrics"
	"github.com/saaga0h/ea-advisor/internal/pagecontext"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
	"github.com/saaga0h/ea-advisor/pkg/config"
	"github.com/saaga0h/ea-advisor/pkg/health"
	"github.com/saaga0h/ea-advisor/pkg/llm"
	"github.com/saaga0h/ea-advisor/pkg/mqtt"
	"github.com/saaga0h/ea-advisor/pkg/postgres"
	"github.com/saaga0h/ea-advisor/pkg/redis"
)

const actionTimeout = 45 * time.Second

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "advisor-agent"
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting EA Advisor Agent",
		"service_name", cfg.ServiceName,
		"session_id", cfg.SessionID,
		"mqtt_broker", cfg.MQTTAddress(),
		"storage", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)

	// Storage backend; clients stay nil interfaces when unused so health reports them disabled
	var (
		store       persistence.Store
		redisClient redis.Client
		pgClient    postgres.Client
	)
	switch cfg.StorageBackend {
	case "redis":
		redisClient = redis.NewClient(cfg, logger)
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable at startup, state will be retried on write", "error", err)
		}
		store = persistence.NewRedisStore(redisClient, cfg.SessionID, logger)
	case "postgres":
		pg := postgres.NewClient(cfg, logger)
		if err := pg.Connect(ctx); err != nil {
			logger.Error("Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Disconnect()

		pgStore := persistence.NewPostgresStore(pg, cfg.SessionID, logger)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare state table", "error", err)
			os.Exit(1)
		}
		pgClient = pg
		store = pgStore
	default:
		store = persistence.NewMemoryStore()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	collector := metrics.NewCollector()
	chat := llm.WithObserver(newChatClient(cfg, logger), collector.ObserveLLM)

	catalog := suggestions.DefaultCatalog()
	executor := actions.NewLLMExecutor(chat, actionTimeout, logger, actions.DefaultDefinitions()...)
	for _, a := range catalog.AllActions() {
		executor.Register(actions.Definition{ID: a.ID, Name: a.Name, Instruction: a.Description + "."})
	}

	clock := advisor.NewTimeManager(logger)

	automationEngine := automation.NewEngine(executor, chat, store, clock.Now, logger)
	automationEngine.SetInterpretTimeout(actionTimeout)
	if cfg.RulesFile != "" {
		rules, err := automation.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			logger.Error("Failed to load rules file", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		automationEngine.AddRules(ctx, rules...)
		logger.Info("Loaded automation rules", "path", cfg.RulesFile, "count", len(rules))
	}
	if !cfg.AutomationEnabled {
		automationEngine.Disable()
	}

	initial := pagecontext.NewState(clock.Now())
	initial.TrackingEnabled = cfg.TrackingEnabled

	service := advisor.NewService(
		pagecontext.NewStore(initial, store, logger),
		suggestions.NewEngine(suggestions.DefaultRules(catalog), store, clock.Now, logger),
		automationEngine,
		collector,
		clock.Now,
		logger,
	)
	service.Load(ctx)

	agent := advisor.NewAgent(mqttClient, service, clock, cfg, logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	httpServer := startHTTPServer(cfg.HealthPort, api.NewRouter(api.NewHandler(service, logger), healthChecker, collector), logger)

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	logger.Info("Advisor agent shutdown complete")
}

func newChatClient(cfg *config.Config, logger *slog.Logger) llm.ChatClient {
	opts := llm.Options{
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     actionTimeout,
	}
	if cfg.LLMProvider == "ollama" {
		return llm.NewOllamaClient(cfg.LLMBaseURL(), opts, logger)
	}
	return llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL(), opts, logger)
}

func startHTTPServer(port int, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	return server
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
