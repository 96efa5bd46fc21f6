package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/saaga0h/ea-advisor/e2e/internal/observer"
	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic    string
	retained bool
	payload  map[string]interface{}
}

// loopback records publications into an observer, standing in for the broker
type loopback struct {
	mu   sync.Mutex
	sent []published
	obs  *observer.Observer
}

func (l *loopback) Publish(topic string, retained bool, payload []byte) error {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, published{topic, retained, body})
	l.mu.Unlock()
	l.obs.Record(topic, payload)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerReplaysSteps(t *testing.T) {
	obs := observer.NewObserver("tcp://unused:1883", "s1", discard())
	obs.Record("ea/s1/suggestions", []byte(`{"suggestions":[{"id":"sg-1","title":"Welcome"},{"id":"sg-2"}]}`))
	obs.Record("ea/s1/command/result", []byte(`{"command":"analyze","route":"analysis"}`))

	pub := &loopback{obs: obs}
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), persistence.KeyPageContext, []byte(`{"viewHistory":["roadmap"]}`)))

	s := &scenario.Scenario{
		Name:     "replay",
		Session:  "s1",
		TestMode: &scenario.TestModeConfig{VirtualStart: "2026-03-02T09:00:00Z", TimeScale: 60},
		Steps: []scenario.Step{
			{Kind: scenario.StepActivity, Repeat: 3, Payload: map[string]interface{}{"type": "search"}, Description: "search"},
			{Kind: scenario.StepFeedback, Payload: map[string]interface{}{"id": scenario.LatestSuggestion, "kind": "accepted"}, Description: "accept"},
		},
		Expectations: map[string][]scenario.Expectation{
			"commands": {{Topic: "command/result", Payload: map[string]interface{}{"route": "analysis"}}},
			"state":    {{StateKey: persistence.KeyPageContext, State: map[string]interface{}{"viewHistory": []interface{}{"roadmap"}}}},
			"missing":  {{Topic: "automation", Payload: map[string]interface{}{"ruleId": "*"}}},
		},
	}

	result, timeline, err := NewRunner(pub, obs, store, 0, discard()).Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, pub.sent, 5)
	assert.Equal(t, "ea/s1/test/time_config", pub.sent[0].topic)
	assert.True(t, pub.sent[0].retained)
	assert.EqualValues(t, 60, pub.sent[0].payload["time_scale"])
	for _, p := range pub.sent[1:4] {
		assert.Equal(t, "ea/s1/activity", p.topic)
	}
	assert.Equal(t, "ea/s1/feedback", pub.sent[4].topic)
	assert.Equal(t, "sg-1", pub.sent[4].payload["id"])

	assert.False(t, result.Passed)
	assert.Equal(t, 2, result.PassedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, timeline, 5)
}

func TestRunnerFailsFeedbackWithoutSuggestions(t *testing.T) {
	obs := observer.NewObserver("tcp://unused:1883", "s1", discard())
	s := &scenario.Scenario{
		Name:    "feedback first",
		Session: "s1",
		Steps: []scenario.Step{
			{Kind: scenario.StepFeedback, Payload: map[string]interface{}{"id": scenario.LatestSuggestion, "kind": "shown"}, Description: "x"},
		},
	}

	_, _, err := NewRunner(&loopback{obs: obs}, obs, nil, 0, discard()).Run(context.Background(), s)
	assert.ErrorContains(t, err, "no suggestions published yet")
}

func TestWaitUntilHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitUntil(ctx, time.Now(), 60, 1)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, WaitUntil(context.Background(), time.Now().Add(-time.Minute), 30, 1))
}
