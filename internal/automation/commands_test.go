package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCommandRouting(t *testing.T) {
	tests := []struct {
		command   string
		route     string
		wantCalls []string
	}{
		{"  Analyze this view ", RouteAnalysis, []string{actionAnalyze}},
		{"Generate a transition plan", RouteGeneration, []string{actionGenerate}},
		{"create a capability map", RouteGeneration, []string{actionGenerate}},
		{"optimize hosting costs", RouteOptimization, []string{actionOptimize}},
		{"search for CRM systems", RouteSearch, []string{actionSearch}},
		{"weekly report please", RouteReport, []string{actionReport}},
		{"analyze and generate a report", RouteAnalysis, []string{actionAnalyze}},
		{"automate list", RouteAutomation, nil},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			e, exec, _, _ := newTestEngine(nil)
			res := e.ProcessCommand(context.Background(), tt.command, activity.Context{CurrentView: "roadmap"})
			assert.Equal(t, tt.route, res.Route)
			assert.True(t, res.Result.Success)
			assert.Equal(t, tt.wantCalls, exec.calls)
		})
	}
}

func TestAutomateCommands(t *testing.T) {
	ctx := context.Background()
	e, exec, clock, _ := newTestEngine(nil)

	res := e.ProcessCommand(ctx, "automate enable daily-insights", activity.Context{})
	require.True(t, res.Result.Success)
	r, _ := e.Rule(DailyInsightsRuleID)
	assert.True(t, r.Enabled)

	res = e.ProcessCommand(ctx, "automate disable daily-insights", activity.Context{})
	require.True(t, res.Result.Success)
	r, _ = e.Rule(DailyInsightsRuleID)
	assert.False(t, r.Enabled)

	res = e.ProcessCommand(ctx, "automate enable no-such-rule", activity.Context{})
	assert.False(t, res.Result.Success)
	assert.NotEmpty(t, res.Result.Suggestions)

	res = e.ProcessCommand(ctx, "automate data-quality-analysis when export", activity.Context{})
	require.True(t, res.Result.Success)
	custom, ok := res.Result.Data.(Rule)
	require.True(t, ok)
	assert.Equal(t, TriggerActivity, custom.Trigger.Type)
	assert.Equal(t, "export", custom.Trigger.Pattern)
	assert.Equal(t, "data-quality-analysis", custom.Action.ActionID)
	assert.True(t, custom.Enabled)
	assert.Equal(t, CustomRuleLabel, MetricLabel(custom.ID))
	assert.Equal(t, "security-review", MetricLabel("security-review"))

	executed := e.CheckTriggers(ctx, activity.Context{}, []activity.Activity{
		activity.New(activity.TypeExport, activity.Details{Action: "csv"}, clock.Now()),
	})
	require.Len(t, executed, 1)
	assert.Equal(t, custom.ID, executed[0].RuleID)
	assert.Equal(t, []string{"data-quality-analysis"}, exec.calls)

	res = e.ProcessCommand(ctx, "automate export the roadmap", activity.Context{})
	require.True(t, res.Result.Success)
	manual := res.Result.Data.(Rule)
	assert.Equal(t, TriggerManual, manual.Trigger.Type)
	assert.Equal(t, ActionCommand, manual.Action.Type)
	assert.Equal(t, "export the roadmap", manual.Action.Command)
}

func TestInterpretedCommands(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		chatErr     error
		wantSuccess bool
		wantCalls   []string
		wantData    interface{}
	}{
		{
			name:        "dispatches known route",
			reply:       `{"action":"report","parameters":{"audience":"cio"},"explanation":"wants a summary"}`,
			wantSuccess: true,
			wantCalls:   []string{actionReport},
		},
		{
			name:        "dispatches action id",
			reply:       `Sure! {"action":"security-review","parameters":{},"explanation":"risk question"}`,
			wantSuccess: true,
			wantCalls:   []string{"security-review"},
		},
		{
			name:        "direct answer",
			reply:       `{"action":"answer","parameters":{"response":"TOGAF is a framework"},"explanation":"question"}`,
			wantSuccess: true,
			wantData:    "TOGAF is a framework",
		},
		{
			name:  "non json reply",
			reply: "I am not sure what you mean",
		},
		{
			name:    "provider failure",
			chatErr: errors.New("timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &llm.MockClient{ChatFunc: func(ctx context.Context, m []llm.Message) (string, error) {
				return tt.reply, tt.chatErr
			}}
			e, exec, _, _ := newTestEngine(chat)

			res := e.ProcessCommand(context.Background(), "what about TOGAF?", activity.Context{})
			assert.Equal(t, RouteInterpreted, res.Route)
			assert.Equal(t, tt.wantSuccess, res.Result.Success)
			assert.Equal(t, tt.wantCalls, exec.calls)
			assert.Len(t, chat.Calls, 1, "no retry")
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, res.Result.Data)
			}
			if !tt.wantSuccess {
				assert.Equal(t, fallbackSuggestions, res.Result.Suggestions)
			}
		})
	}
}

func TestInterpretWithoutChatClient(t *testing.T) {
	e, _, _, _ := newTestEngine(nil)
	res := e.ProcessCommand(context.Background(), "hello there", activity.Context{})
	assert.False(t, res.Result.Success)
	assert.Equal(t, fallbackSuggestions, res.Result.Suggestions)
}

func TestCommandHistoryBounded(t *testing.T) {
	e, _, _, _ := newTestEngine(nil)
	for i := 0; i < MaxCommandHistory+5; i++ {
		e.ProcessCommand(context.Background(), fmt.Sprintf("search item %d", i), activity.Context{})
	}

	history := e.CommandHistory()
	require.Len(t, history, MaxCommandHistory)
	assert.Equal(t, "search item 5", history[0].Command)
	assert.Equal(t, fmt.Sprintf("search item %d", MaxCommandHistory+4), history[len(history)-1].Command)
}

func TestPendingInterpretationLeavesEngineResponsive(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	chat := &llm.MockClient{ChatFunc: func(ctx context.Context, m []llm.Message) (string, error) {
		close(entered)
		<-release
		return "", errors.New("model unavailable")
	}}
	e, _, _, _ := newTestEngine(chat)

	done := make(chan CommandResult, 1)
	go func() {
		done <- e.ProcessCommand(ctx, "what should I look at next", activity.Context{})
	}()
	<-entered

	responsive := make(chan struct{})
	go func() {
		defer close(responsive)
		e.CheckTriggers(ctx, activity.Context{}, nil)
		e.RunScheduled(ctx, activity.Context{}, time.Date(2026, 3, 3, 9, 0, 0, 0, time.Local))
		e.Rules()
		e.Disable()
		e.Enable()
		_, _ = e.ExecutionHistory(DailyInsightsRuleID)
	}()

	select {
	case <-responsive:
	case <-time.After(2 * time.Second):
		t.Fatal("engine blocked behind an in-flight chat call")
	}

	close(release)
	res := <-done
	assert.False(t, res.Result.Success)
	assert.Equal(t, fallbackSuggestions, res.Result.Suggestions)
	assert.Len(t, e.CommandHistory(), 1)
}

func TestInterpretationDeadline(t *testing.T) {
	chat := &llm.MockClient{ChatFunc: func(ctx context.Context, m []llm.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e, exec, _, _ := newTestEngine(chat)
	e.SetInterpretTimeout(20 * time.Millisecond)

	res := e.ProcessCommand(context.Background(), "what is next", activity.Context{})
	assert.Equal(t, RouteInterpreted, res.Route)
	assert.False(t, res.Result.Success)
	assert.Contains(t, res.Result.Error, context.DeadlineExceeded.Error())
	assert.Empty(t, exec.calls)
}
