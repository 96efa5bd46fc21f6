package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/pkg/config"
	"github.com/saaga0h/ea-advisor/pkg/mqtt"
)

// Agent connects a Service to the dashboard over MQTT and drives the
// analysis and scheduler ticks
type Agent struct {
	mqtt    mqtt.Client
	service *Service
	clock   *TimeManager
	cfg     *config.Config
	logger  *slog.Logger

	analysisTicker  *time.Ticker
	schedulerTicker *time.Ticker
	stopChan        chan struct{}
}

// NewAgent creates a new advisor agent
func NewAgent(mqttClient mqtt.Client, service *Service, clock *TimeManager, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:     mqttClient,
		service:  service,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start connects, subscribes and runs the tick loops until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting advisor agent",
		"service_name", a.cfg.ServiceName,
		"session_id", a.cfg.SessionID,
		"analysis_interval_sec", a.cfg.AnalysisIntervalSec,
		"scheduler_interval_sec", a.cfg.SchedulerIntervalSec)

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.clock.ConfigureFromMQTT(a.mqtt, a.cfg.SessionID); err != nil {
		return fmt.Errorf("failed to subscribe to time config: %w", err)
	}

	for _, suffix := range []string{mqtt.SuffixActivity, mqtt.SuffixContext, mqtt.SuffixCommand, mqtt.SuffixFeedback} {
		topic := mqtt.SessionTopic(a.cfg.SessionID, suffix)
		if err := a.mqtt.Subscribe(topic, 1, a.dispatch); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		a.logger.Info("Subscribed", "topic", topic)
	}

	a.startLoops()

	a.logger.Info("Advisor agent started and ready")

	<-ctx.Done()
	a.logger.Info("Advisor agent stopping")
	return nil
}

// Stop stops the tick loops and disconnects
func (a *Agent) Stop() error {
	a.logger.Info("Stopping advisor agent")

	if a.analysisTicker != nil {
		a.analysisTicker.Stop()
	}
	if a.schedulerTicker != nil {
		a.schedulerTicker.Stop()
	}
	close(a.stopChan)

	a.mqtt.Disconnect()

	a.logger.Info("Advisor agent stopped")
	return nil
}

func (a *Agent) startLoops() {
	a.analysisTicker = time.NewTicker(a.cfg.AnalysisInterval())
	a.schedulerTicker = time.NewTicker(a.cfg.SchedulerInterval())

	go a.loop(a.analysisTicker, a.RunAnalysis)
	go a.loop(a.schedulerTicker, a.RunScheduler)
}

// loop runs fn on every tick until the agent stops. Each ticker has its own
// goroutine so a slow pass of one never drops ticks of the other.
func (a *Agent) loop(ticker *time.Ticker, fn func(context.Context)) {
	for {
		select {
		case <-ticker.C:
			fn(context.Background())
		case <-a.stopChan:
			return
		}
	}
}

// RunAnalysis performs one analysis pass and publishes its output
func (a *Agent) RunAnalysis(ctx context.Context) {
	res := a.service.Analyze(ctx)
	if !res.Ran {
		return
	}
	a.publishSuggestions(res)
	a.publishExecutions(res.Executions)
}

// RunScheduler fires due scheduled rules and publishes the executions
func (a *Agent) RunScheduler(ctx context.Context) {
	a.publishExecutions(a.service.RunScheduled(ctx))
}

// dispatch routes an inbound session message by topic suffix
func (a *Agent) dispatch(msg mqtt.Message) {
	switch mqtt.TopicSuffix(a.cfg.SessionID, msg.Topic()) {
	case mqtt.SuffixActivity:
		a.handleActivityMessage(msg)
	case mqtt.SuffixContext:
		a.handleContextMessage(msg)
	case mqtt.SuffixCommand:
		a.handleCommandMessage(msg)
	case mqtt.SuffixFeedback:
		a.handleFeedbackMessage(msg)
	default:
		a.logger.Warn("Message on unexpected topic", "topic", msg.Topic())
	}
}

func (a *Agent) handleActivityMessage(msg mqtt.Message) {
	var act activity.Activity
	if err := json.Unmarshal(msg.Payload(), &act); err != nil {
		a.logger.Error("Failed to parse activity message", "error", err)
		return
	}

	tracked, err := a.service.TrackActivity(context.Background(), act)
	if err != nil {
		a.logger.Warn("Rejected activity", "type", act.Type, "error", err)
		return
	}
	a.logger.Debug("Activity tracked", "id", tracked.ID, "type", tracked.Type, "view", tracked.Details.View)
}

func (a *Agent) handleContextMessage(msg mqtt.Message) {
	var update ContextUpdate
	if err := json.Unmarshal(msg.Payload(), &update); err != nil {
		a.logger.Error("Failed to parse context message", "error", err)
		return
	}

	st := a.service.UpdateContext(context.Background(), update)
	a.logger.Debug("Page context updated", "view", st.CurrentView, "tracking", st.TrackingEnabled)
}

func (a *Agent) handleCommandMessage(msg mqtt.Message) {
	var cmd struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		a.logger.Error("Failed to parse command message", "error", err)
		return
	}

	res := a.service.ProcessCommand(context.Background(), cmd.Command)
	a.publish(mqtt.SuffixCommandResult, res)
}

func (a *Agent) handleFeedbackMessage(msg mqtt.Message) {
	var fb struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(msg.Payload(), &fb); err != nil {
		a.logger.Error("Failed to parse feedback message", "error", err)
		return
	}

	if err := a.service.Feedback(context.Background(), fb.ID, fb.Kind); err != nil {
		a.logger.Warn("Feedback not recorded", "id", fb.ID, "kind", fb.Kind, "error", err)
	}
}

func (a *Agent) publishSuggestions(res TickResult) {
	a.publish(mqtt.SuffixSuggestions, map[string]interface{}{
		"suggestions": res.Suggestions,
		"behavior":    res.Behavior,
		"timestamp":   a.clock.Now().Format(time.RFC3339),
	})
}

func (a *Agent) publishExecutions(executions []automation.Execution) {
	for _, exe := range executions {
		a.publish(mqtt.SuffixAutomation, exe)
	}
}

func (a *Agent) publish(suffix string, v interface{}) {
	topic := mqtt.SessionTopic(a.cfg.SessionID, suffix)
	if err := mqtt.PublishJSON(a.mqtt, topic, 0, v); err != nil {
		a.logger.Error("Failed to publish", "topic", topic, "error", err)
	}
}
