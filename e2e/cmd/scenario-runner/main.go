package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/ea-advisor/e2e/internal/executor"
	"github.com/saaga0h/ea-advisor/e2e/internal/observer"
	"github.com/saaga0h/ea-advisor/e2e/internal/reporter"
	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/pkg/config"
	"github.com/saaga0h/ea-advisor/pkg/postgres"
	"github.com/saaga0h/ea-advisor/pkg/redis"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "scenario-runner"
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	startupWait := pflag.Duration("startup-wait", 2*time.Second, "Pause after test mode config before the first step")
	cfg.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state, closeState, err := openState(ctx, cfg, scen.Session, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state store: %v\n", err)
		os.Exit(1)
	}
	defer closeState()

	obs := observer.NewObserver(cfg.MQTTAddress(), scen.Session, logger)
	if err := obs.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start observer: %v\n", err)
		os.Exit(1)
	}
	defer obs.Stop()

	player, err := executor.NewMQTTPlayer(cfg.MQTTAddress(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start player: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()

	runner := executor.NewRunner(player, obs, state, *startupWait, logger)
	result, timeline, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scenario execution failed: %v\n", err)
		os.Exit(1)
	}

	report := reporter.GenerateTimeline(result, timeline)
	fmt.Println(report)

	name := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))
	artifacts := []struct {
		kind string
		path string
		save func(string) error
	}{
		{"timeline", filepath.Join(*outputDir, "timelines", name+".txt"), func(p string) error { return reporter.SaveTimeline(report, p) }},
		{"capture", filepath.Join(*outputDir, "captures", name+".json"), obs.SaveCapture},
		{"summary", filepath.Join(*outputDir, "summaries", name+".json"), func(p string) error { return reporter.SaveSummary(result, p) }},
	}
	for _, a := range artifacts {
		if err := a.save(a.path); err != nil {
			logger.Warn("Failed to save artifact", "kind", a.kind, "error", err)
			continue
		}
		logger.Info("Artifact saved", "kind", a.kind, "path", a.path)
	}

	if !result.Passed {
		os.Exit(1)
	}
}

// openState returns the store the agent persists into, or nil for the memory backend
func openState(ctx context.Context, cfg *config.Config, session string, logger *slog.Logger) (persistence.Store, func(), error) {
	switch cfg.StorageBackend {
	case "redis":
		client := redis.NewClient(cfg, logger)
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return persistence.NewRedisStore(client, session, logger), func() { client.Close() }, nil
	case "postgres":
		client := postgres.NewClient(cfg, logger)
		if err := client.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return persistence.NewPostgresStore(client, session, logger), func() { client.Disconnect() }, nil
	}
	return nil, func() {}, nil
}
