package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/ea-advisor/e2e/internal/checker"
	"github.com/saaga0h/ea-advisor/e2e/internal/observer"
	"github.com/saaga0h/ea-advisor/e2e/internal/reporter"
	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/pkg/mqtt"
)

// Publisher sends raw messages to the broker
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MessageSource exposes the traffic captured so far
type MessageSource interface {
	Messages() []observer.CapturedMessage
}

// Runner replays a scenario and checks its expectations
type Runner struct {
	publisher Publisher
	source    MessageSource
	state     persistence.Store
	startup   time.Duration
	logger    *slog.Logger
}

// NewRunner creates a runner. state may be nil when no expectation reads persisted documents.
func NewRunner(publisher Publisher, source MessageSource, state persistence.Store, startup time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		publisher: publisher,
		source:    source,
		state:     state,
		startup:   startup,
		logger:    logger,
	}
}

// Run executes a scenario
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "session", s.Session)

	timeScale := 1
	if s.TestMode != nil {
		if err := r.publishTestMode(s); err != nil {
			return nil, nil, err
		}
		timeScale = s.TestMode.TimeScale
	}

	if r.startup > 0 {
		r.logger.Info("Waiting for agent to settle", "duration", r.startup)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(r.startup):
		}
	}

	start := time.Now()
	var timeline []reporter.TimelineEvent

	for i, step := range s.Steps {
		if err := WaitUntil(ctx, start, step.Time, timeScale); err != nil {
			return nil, nil, err
		}

		payload, err := r.resolve(s.Session, step)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", i, err)
		}

		topic := mqtt.SessionTopic(s.Session, step.Kind)
		for n := 0; n < step.Count(); n++ {
			if err := r.publisher.Publish(topic, false, payload); err != nil {
				return nil, nil, fmt.Errorf("step %d: %w", i, err)
			}
		}

		desc := step.Description
		if step.Count() > 1 {
			desc = fmt.Sprintf("%s (x%d)", desc, step.Count())
		}
		r.logger.Info("Step published", "kind", step.Kind, "description", desc)
		timeline = append(timeline, reporter.TimelineEvent{Elapsed: time.Since(start).Seconds(), Group: step.Kind, Description: desc})
	}

	for _, wait := range s.Wait {
		if err := WaitUntil(ctx, start, wait.Time, timeScale); err != nil {
			return nil, nil, err
		}
		timeline = append(timeline, reporter.TimelineEvent{Elapsed: time.Since(start).Seconds(), Group: "wait", Description: wait.Description})
	}

	type groupExp struct {
		group string
		exp   scenario.Expectation
	}
	var all []groupExp
	for group, exps := range s.Expectations {
		for _, exp := range exps {
			all = append(all, groupExp{group, exp})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].exp.Time != all[j].exp.Time {
			return all[i].exp.Time < all[j].exp.Time
		}
		return all[i].group < all[j].group
	})

	result := &scenario.TestResult{Scenario: s, StartTime: start}
	for _, ge := range all {
		if err := WaitUntil(ctx, start, ge.exp.Time, timeScale); err != nil {
			return nil, nil, err
		}

		var passed bool
		var reason string
		var actual interface{}
		if ge.exp.StateKey != "" {
			passed, reason, actual = checker.CheckStateExpectation(ctx, r.state, ge.exp)
		} else {
			passed, reason, actual = checker.CheckExpectation(s.Session, ge.exp, r.source.Messages())
		}

		if passed {
			result.PassedCount++
			r.logger.Info("Expectation passed", "group", ge.group, "target", ge.exp.Target())
		} else {
			result.FailedCount++
			r.logger.Warn("Expectation failed", "group", ge.group, "target", ge.exp.Target(), "reason", reason)
		}

		result.Expectations = append(result.Expectations, scenario.ExpectationResult{
			Group:       ge.group,
			Expectation: ge.exp,
			Passed:      passed,
			Reason:      reason,
			Actual:      actual,
		})
		timeline = append(timeline, reporter.TimelineEvent{
			Elapsed:     time.Since(start).Seconds(),
			Group:       ge.group,
			Description: ge.exp.Target(),
			Success:     passed,
			IsCheck:     true,
		})
	}

	result.EndTime = time.Now()
	result.Passed = result.FailedCount == 0
	return result, timeline, nil
}

// resolve marshals a step payload, substituting the latest suggestion id in feedback steps
func (r *Runner) resolve(session string, step scenario.Step) ([]byte, error) {
	payload := step.Payload
	if step.Kind == scenario.StepFeedback && payload["id"] == scenario.LatestSuggestion {
		id, err := latestSuggestionID(session, r.source.Messages())
		if err != nil {
			return nil, err
		}
		payload = make(map[string]interface{}, len(step.Payload))
		for k, v := range step.Payload {
			payload[k] = v
		}
		payload["id"] = id
	}
	return json.Marshal(payload)
}

func latestSuggestionID(session string, messages []observer.CapturedMessage) (string, error) {
	msg, ok := observer.Latest(messages, mqtt.SessionTopic(session, mqtt.SuffixSuggestions))
	if !ok {
		return "", fmt.Errorf("no suggestions published yet")
	}

	var body struct {
		Suggestions []struct {
			ID string `json:"id"`
		} `json:"suggestions"`
	}
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Suggestions) == 0 {
		return "", fmt.Errorf("latest suggestions message carries no suggestion")
	}
	return body.Suggestions[0].ID, nil
}

// publishTestMode sends the retained virtual clock config the agent's TimeManager reads
func (r *Runner) publishTestMode(s *scenario.Scenario) error {
	payload, err := json.Marshal(map[string]interface{}{
		"virtual_start": s.TestMode.VirtualStart,
		"time_scale":    s.TestMode.TimeScale,
		"test_mode":     true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal test mode config: %w", err)
	}

	topic := mqtt.SessionTopic(s.Session, mqtt.SuffixTimeConfig)
	if err := r.publisher.Publish(topic, true, payload); err != nil {
		return fmt.Errorf("failed to publish test mode: %w", err)
	}
	r.logger.Info("Published test mode configuration", "topic", topic, "time_scale", s.TestMode.TimeScale)
	return nil
}
