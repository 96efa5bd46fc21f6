package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/saaga0h/ea-advisor/internal/actions"
	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/metrics"
	"github.com/saaga0h/ea-advisor/internal/pagecontext"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
	"github.com/saaga0h/ea-advisor/pkg/config"
	"github.com/saaga0h/ea-advisor/pkg/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

type fixture struct {
	service *Service
	clock   *time.Time
	store   *persistence.MemoryStore
	calls   *[]string
}

func newFixture(t *testing.T, result actions.Result) fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := sessionStart.Add(20 * time.Minute)
	clock := func() time.Time { return now }
	store := persistence.NewMemoryStore()

	var calls []string
	exec := actions.ExecutorFunc(func(ctx context.Context, id string, pc activity.Context, p map[string]interface{}) actions.Result {
		calls = append(calls, id)
		return result
	})

	svc := NewService(
		pagecontext.NewStore(pagecontext.NewState(sessionStart), store, logger),
		suggestions.NewEngine(suggestions.DefaultRules(suggestions.DefaultCatalog()), store, clock, logger),
		automation.NewEngine(exec, nil, store, clock, logger),
		metrics.NewCollector(),
		clock,
		logger,
	)
	return fixture{service: svc, clock: &now, store: store, calls: &calls}
}

func track(t *testing.T, s *Service, n int, typ activity.Type, view string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.TrackActivity(context.Background(), activity.Activity{
			Type:    typ,
			Details: activity.Details{View: view, Action: "open"},
		})
		require.NoError(t, err)
	}
}

func TestAnalyzeRequiresMoreThanFiveActivities(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true})
	track(t, f.service, 5, activity.TypeViewChange, "roadmap")

	res := f.service.Analyze(context.Background())
	assert.False(t, res.Ran)

	track(t, f.service, 1, activity.TypeViewChange, "roadmap")
	res = f.service.Analyze(context.Background())
	require.True(t, res.Ran)
	assert.Equal(t, []string{"roadmap"}, res.Behavior.FrequentViews)
	assert.InDelta(t, 20.0, res.Behavior.WorkPatterns.AverageSessionDuration, 1e-9)
	assert.Equal(t, res.Behavior, f.service.State().UserBehavior)
	assert.Equal(t, res.Suggestions, f.service.State().Suggestions)
}

func TestAnalyzeSkippedWhileTrackingDisabled(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true})
	track(t, f.service, 8, activity.TypeSearch, "roadmap")

	off := false
	f.service.UpdateContext(context.Background(), ContextUpdate{Tracking: &off})
	assert.False(t, f.service.Analyze(context.Background()).Ran)
}

func TestTrackActivityValidation(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true})

	_, err := f.service.TrackActivity(context.Background(), activity.Activity{})
	assert.ErrorIs(t, err, activity.ErrMissingType)

	a, err := f.service.TrackActivity(context.Background(), activity.Activity{Type: activity.TypeExport})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, *f.clock, a.Timestamp)
}

func TestUpdateContextTracksViewChanges(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true})
	view := "capability-heatmap"
	industry := "insurance"

	st := f.service.UpdateContext(context.Background(), ContextUpdate{View: &view, Industry: &industry})
	assert.Equal(t, view, st.CurrentView)
	assert.Equal(t, industry, st.SelectedIndustry)
	assert.Equal(t, []string{view}, st.ViewHistory)
	require.Equal(t, 1, st.Activities.Len())
	assert.Equal(t, activity.TypeViewChange, st.Activities.Entries()[0].Type)

	st = f.service.UpdateContext(context.Background(), ContextUpdate{View: &view})
	assert.Equal(t, 1, st.Activities.Len(), "same view is not a change")
}

func TestTaggedExecutionsFeedTheLog(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true, Tags: []string{activity.TagSecurity}})
	for i := 0; i < 6; i++ {
		_, err := f.service.TrackActivity(context.Background(), activity.Activity{
			Type:    activity.TypeCreation,
			Details: activity.Details{View: "roadmap", Action: fmt.Sprintf("add_%d", i)},
		})
		require.NoError(t, err)
	}

	res := f.service.Analyze(context.Background())
	require.True(t, res.Ran)
	require.Len(t, res.Executions, 1)
	assert.Equal(t, "auto-analyze-new-data", res.Executions[0].RuleID)

	entries := f.service.State().Activities.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, activity.TypeAnalysis, last.Type)
	assert.True(t, last.Details.HasTag(activity.TagSecurity))

	// The security detector now sees the tagged result on the next pass
	*f.clock = f.clock.Add(time.Minute)
	res = f.service.Analyze(context.Background())
	require.Len(t, res.Executions, 1)
	assert.Equal(t, "security-review", res.Executions[0].RuleID)
	assert.Equal(t, []string{"analyze-current-view", "security-review"}, *f.calls)

	ops := f.service.State().AutomationOpportunities
	require.NotEmpty(t, ops)
}

func TestSlowActionDoesNotHoldTicks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := sessionStart.Add(20 * time.Minute)
	clock := func() time.Time { return now }
	store := persistence.NewMemoryStore()

	started := make(chan string, 1)
	release := make(chan struct{})
	exec := actions.ExecutorFunc(func(ctx context.Context, id string, pc activity.Context, p map[string]interface{}) actions.Result {
		started <- id
		<-release
		return actions.Result{Success: true}
	})
	svc := NewService(
		pagecontext.NewStore(pagecontext.NewState(sessionStart), store, logger),
		suggestions.NewEngine(suggestions.DefaultRules(suggestions.DefaultCatalog()), store, clock, logger),
		automation.NewEngine(exec, nil, store, clock, logger),
		metrics.NewCollector(),
		clock,
		logger,
	)
	for i := 0; i < 6; i++ {
		_, err := svc.TrackActivity(context.Background(), activity.Activity{
			Type:    activity.TypeCreation,
			Details: activity.Details{View: "roadmap", Action: fmt.Sprintf("add_%d", i)},
		})
		require.NoError(t, err)
	}

	first := make(chan TickResult, 1)
	go func() { first <- svc.Analyze(context.Background()) }()
	assert.Equal(t, "analyze-current-view", <-started)

	next := make(chan TickResult, 1)
	go func() {
		svc.RunScheduled(context.Background())
		next <- svc.Analyze(context.Background())
	}()

	select {
	case res := <-next:
		assert.True(t, res.Ran)
		assert.Empty(t, res.Executions, "the rule in flight is not fired twice")
	case <-time.After(2 * time.Second):
		t.Fatal("ticks blocked behind a pending rule action")
	}

	close(release)
	res := <-first
	require.Len(t, res.Executions, 1)
	assert.Equal(t, "auto-analyze-new-data", res.Executions[0].RuleID)
}

func TestFeedback(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true})
	view := "roadmap"
	f.service.UpdateContext(context.Background(), ContextUpdate{View: &view})

	generated := f.service.GenerateSuggestions(context.Background())
	require.NotEmpty(t, generated)

	require.NoError(t, f.service.Feedback(context.Background(), generated[0].ID, FeedbackShown))
	require.NoError(t, f.service.Feedback(context.Background(), generated[0].ID, FeedbackAccepted))
	assert.Error(t, f.service.Feedback(context.Background(), generated[0].ID, "liked"))
	assert.ErrorIs(t, f.service.Feedback(context.Background(), "missing", FeedbackShown), suggestions.ErrSuggestionNotFound)

	s, ok := f.service.Suggestions().Get(generated[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, s.TimesSuggested)
	assert.Equal(t, 1, s.TimesAccepted)

	f.service.ClearSuggestionHistory(context.Background())
	assert.Empty(t, f.service.Suggestions().History())
	assert.Empty(t, f.service.State().Suggestions)
}

// fakeMQTT records publications and lets tests deliver messages
type fakeMQTT struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published map[string][][]byte
	connected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler), published: make(map[string][][]byte)}
}

func (f *fakeMQTT) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeMQTT) Disconnect()                       { f.connected = false }
func (f *fakeMQTT) IsConnected() bool                 { return f.connected }

func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeMQTT) deliver(topic string, payload interface{}) {
	data, _ := json.Marshal(payload)
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(&fakeMessage{topic: topic, payload: data})
}

func (f *fakeMQTT) messages(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[topic]
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }
func (m *fakeMessage) Ack()            {}

func TestAgentEndToEnd(t *testing.T) {
	f := newFixture(t, actions.Result{Success: true, Data: "ok"})
	cfg := config.NewConfig()
	cfg.SessionID = "tab-1"
	client := newFakeMQTT()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agent := NewAgent(client, f.service, NewTimeManager(logger), cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Start(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return len(client.handlers) == 5
	}, time.Second, 10*time.Millisecond)

	client.deliver("ea/tab-1/context", map[string]interface{}{"view": "roadmap"})
	for i := 0; i < 6; i++ {
		client.deliver("ea/tab-1/activity", map[string]interface{}{
			"type":    "search",
			"details": map[string]interface{}{"view": "roadmap", "action": "query"},
		})
	}
	client.deliver("ea/tab-1/activity", map[string]interface{}{"type": "bogus"})
	assert.Equal(t, 7, f.service.State().Activities.Len())

	client.deliver("ea/tab-1/command", map[string]interface{}{"command": "analyze this view"})
	results := client.messages("ea/tab-1/command/result")
	require.Len(t, results, 1)
	var cmd automation.CommandResult
	require.NoError(t, json.Unmarshal(results[0], &cmd))
	assert.Equal(t, automation.RouteAnalysis, cmd.Route)
	assert.True(t, cmd.Result.Success)

	agent.RunAnalysis(context.Background())
	require.Len(t, client.messages("ea/tab-1/suggestions"), 1)

	var published struct {
		Suggestions []suggestions.SmartSuggestion `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(client.messages("ea/tab-1/suggestions")[0], &published))
	require.NotEmpty(t, published.Suggestions)

	client.deliver("ea/tab-1/feedback", map[string]interface{}{"id": published.Suggestions[0].ID, "kind": "accepted"})
	s, ok := f.service.Suggestions().Get(published.Suggestions[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, s.TimesAccepted)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, agent.Stop())
	assert.False(t, client.IsConnected())
}

func TestTimeManagerVirtualClock(t *testing.T) {
	tm := NewTimeManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, tm.IsTestMode())

	tm.HandleConfig([]byte(`{"test_mode": true, "virtual_start": "2026-03-02T09:00:00Z", "time_scale": 60}`))
	require.True(t, tm.IsTestMode())
	now := tm.Now()
	assert.False(t, now.Before(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	assert.True(t, now.Before(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	tm.HandleConfig([]byte(`not json`))
	assert.True(t, tm.IsTestMode())

	tm.HandleConfig([]byte(`{"test_mode": false}`))
	assert.False(t, tm.IsTestMode())
}
