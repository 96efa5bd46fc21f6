package suggestions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/behavior"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(rules []Rule, store persistence.Store) (*Engine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 14, 30, 0, 0, time.Local)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(rules, store, clock.Now, logger), clock
}

func findByType(list []SmartSuggestion, t Type) []SmartSuggestion {
	var out []SmartSuggestion
	for _, s := range list {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

func TestWelcomeSuggestionOnEmptyLog(t *testing.T) {
	e, _ := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())

	got := e.GenerateSuggestions(context.Background(),
		activity.Context{CurrentView: "target-state", SelectedIndustry: "banking"},
		behavior.Default(), nil)

	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, TypeLearning, s.Type)
	assert.Equal(t, "Welcome to Target State Architecture", s.Title)
	assert.Equal(t, PriorityHigh, s.Priority)
	assert.InDelta(t, 0.9, s.Confidence, 1e-9)
	assert.InDelta(t, 1.0, s.RelevanceScore, 1e-9, "1.0*0.4 + 0.9*0.3 + 0.2 + 0.1 + 0.1 clamps to 1")
	assert.Equal(t, "banking", s.Context.Industry)
	assert.NotEmpty(t, s.ID)
}

func TestRepeatedActionSuggestsAutomation(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)
	tests := []struct {
		name       string
		repeats    int
		priority   Priority
		confidence float64
	}{
		{"five repeats", 5, PriorityHigh, 1.0},
		{"three repeats", 3, PriorityMedium, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())

			var acts []activity.Activity
			for i := 0; i < 10; i++ {
				if i < tt.repeats {
					acts = append(acts, activity.New(activity.TypeAnalysis, activity.Details{View: "roadmap", Action: "click"}, at))
				} else {
					acts = append(acts, activity.New(activity.TypeViewChange, activity.Details{View: fmt.Sprintf("v%d", i), Action: fmt.Sprintf("open%d", i)}, at))
				}
			}

			b := behavior.Default()
			b.FrequentViews = []string{"roadmap"}
			got := e.GenerateSuggestions(context.Background(), activity.Context{CurrentView: "roadmap"}, b, acts)

			autos := findByType(got, TypeAutomation)
			require.Len(t, autos, 1)
			assert.Equal(t, tt.priority, autos[0].Priority)
			assert.InDelta(t, tt.confidence, autos[0].Confidence, 1e-9)
			assert.Equal(t, "analysis_click", autos[0].Metadata["actionKey"])
		})
	}
}

func TestRepetitionOnlyCountsLastTen(t *testing.T) {
	at := time.Now()
	var acts []activity.Activity
	for i := 0; i < 3; i++ {
		acts = append(acts, activity.New(activity.TypeSearch, activity.Details{Action: "query"}, at))
	}
	for i := 0; i < 10; i++ {
		acts = append(acts, activity.New(activity.TypeViewChange, activity.Details{Action: fmt.Sprintf("a%d", i)}, at))
	}
	assert.Empty(t, repeatedActions(acts))
}

func TestDeduplicationFirstWins(t *testing.T) {
	dup := func(desc string) func(Input) []SmartSuggestion {
		return func(in Input) []SmartSuggestion {
			return []SmartSuggestion{newSuggestion(in, AnyLevel, SmartSuggestion{
				Type: TypeInsight, Title: "Same", Description: desc, Priority: PriorityLow,
			})}
		}
	}
	always := func(Input) bool { return true }
	rules := []Rule{
		{ID: "b", Priority: 2, Condition: always, Generator: dup("second")},
		{ID: "a", Priority: 1, Condition: always, Generator: dup("first")},
	}
	e, _ := newTestEngine(rules, persistence.NewMemoryStore())

	got := e.GenerateSuggestions(context.Background(), activity.Context{CurrentView: "x"}, behavior.Default(), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Description)
}

func TestScoreBounded(t *testing.T) {
	now := time.Now()
	pc := activity.Context{CurrentView: "v"}
	b := behavior.Default()

	best := SmartSuggestion{
		RelevanceScore: 1, Confidence: 1, Priority: PriorityCritical,
		TimesSuggested: 1, TimesAccepted: 1,
		Context: Context{View: "v", UserLevel: AnyLevel},
	}
	assert.Equal(t, 1.0, Score(best, pc, b, now))

	worst := SmartSuggestion{Priority: PriorityLow, Context: Context{View: "other", UserLevel: "advanced"}}
	assert.Equal(t, 0.0, Score(worst, pc, b, now))

	plain := SmartSuggestion{RelevanceScore: 0.5, Confidence: 0.5, Priority: PriorityMedium, Context: Context{View: "v", UserLevel: "beginner"}}
	assert.InDelta(t, 0.2+0.15+0.1+0.1+0.1, Score(plain, pc, b, now), 1e-9)

	past := now.Add(-time.Minute)
	plain.ExpiresAt = &past
	assert.InDelta(t, 0.325, Score(plain, pc, b, now), 1e-9)
}

func TestHistoryBonus(t *testing.T) {
	pc := activity.Context{CurrentView: "v"}
	s := SmartSuggestion{Priority: PriorityLow, Context: Context{View: "x", UserLevel: "none"}, TimesSuggested: 4, TimesAccepted: 2}
	assert.InDelta(t, 0.05, Score(s, pc, behavior.Default(), time.Now()), 1e-9)

	s.TimesSuggested = 0
	s.TimesAccepted = 1
	assert.InDelta(t, 0.1, Score(s, pc, behavior.Default(), time.Now()), 1e-9)
}

func TestCooldownPerRuleAndView(t *testing.T) {
	store := persistence.NewMemoryStore()
	e, clock := newTestEngine(DefaultRules(DefaultCatalog()), store)
	ctx := context.Background()
	b := behavior.Default()

	require.Len(t, e.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, b, nil), 1)

	clock.Advance(59 * time.Minute)
	assert.Empty(t, e.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, b, nil))
	assert.Len(t, e.GenerateSuggestions(ctx, activity.Context{CurrentView: "current-state"}, b, nil), 1, "other views have their own key")

	clock.Advance(time.Minute)
	assert.Len(t, e.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, b, nil), 1, "fires again at T+60m")
}

func TestLoadRestoresCooldownsAndHistory(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()

	first, clock := newTestEngine(DefaultRules(DefaultCatalog()), store)
	got := first.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, behavior.Default(), nil)
	require.Len(t, got, 1)
	require.NoError(t, first.MarkShown(ctx, got[0].ID))

	second := NewEngine(DefaultRules(DefaultCatalog()), store, clock.Now, slog.New(slog.NewTextHandler(io.Discard, nil)))
	second.Load(ctx)

	s, ok := second.Get(got[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, s.TimesSuggested)
	assert.Empty(t, second.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, behavior.Default(), nil))
}

func TestLoadIgnoresMalformedState(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, persistence.KeySuggestionHistory, []byte("not json")))

	e, _ := newTestEngine(DefaultRules(DefaultCatalog()), store)
	e.Load(ctx)
	assert.Empty(t, e.History())
}

func TestMarkShownAndAccepted(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())
	got := e.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, behavior.Default(), nil)
	require.Len(t, got, 1)
	id := got[0].ID

	require.NoError(t, e.MarkShown(ctx, id))
	require.NoError(t, e.MarkShown(ctx, id))
	require.NoError(t, e.MarkAccepted(ctx, id))

	s, _ := e.Get(id)
	assert.Equal(t, 2, s.TimesSuggested)
	assert.Equal(t, 1, s.TimesAccepted)

	err := e.MarkShown(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSuggestionNotFound))

	// A regenerated suggestion with the same key inherits the counters
	clock.Advance(2 * time.Hour)
	again := e.GenerateSuggestions(ctx, activity.Context{CurrentView: "roadmap"}, behavior.Default(), nil)
	require.Len(t, again, 1)
	assert.NotEqual(t, id, again[0].ID)
	assert.Equal(t, 2, again[0].TimesSuggested)
	assert.Equal(t, 1, again[0].TimesAccepted)
}

func TestHistorySortedAndCleared(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	always := func(Input) bool { return true }
	gen := func(Input) []SmartSuggestion {
		var out []SmartSuggestion
		for i := 0; i < 7; i++ {
			out = append(out, newSuggestion(Input{}, "none", SmartSuggestion{
				Type: TypeInsight, Title: fmt.Sprintf("s%d", i), RelevanceScore: float64(i) / 10, Priority: PriorityLow,
			}))
		}
		return out
	}
	e, _ := newTestEngine([]Rule{{ID: "many", Priority: 1, Condition: always, Generator: gen}}, store)

	got := e.GenerateSuggestions(ctx, activity.Context{CurrentView: "v"}, behavior.Default(), nil)
	assert.Len(t, got, MaxReturned)
	assert.Equal(t, "s6", got[0].Title)

	history := e.History()
	require.Len(t, history, 7)
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i-1].RelevanceScore, history[i].RelevanceScore)
	}

	e.ClearHistory(ctx)
	assert.Empty(t, e.History())
	_, err := store.Load(ctx, persistence.KeySuggestionHistory)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = store.Load(ctx, persistence.KeySuggestionCooldowns)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestAdvancedUserGetsViewActions(t *testing.T) {
	e, _ := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())
	b := behavior.Default()
	b.ExpertiseLevel = behavior.Advanced
	b.FrequentViews = []string{"target-state", "integration-hub"}

	got := e.GenerateSuggestions(context.Background(), activity.Context{CurrentView: "target-state"}, b, nil)

	actions := findByType(got, TypeAction)
	require.Len(t, actions, 2)
	assert.Equal(t, "analyze-architecture-gaps", actions[0].ActionID)
	assert.Equal(t, "generate-transition-plan", actions[1].ActionID)

	assert.Empty(t, findByType(got, TypeLearning), "frequent view is not first-time")
	for _, s := range findByType(got, TypeInsight) {
		assert.NotEqual(t, "Discover integration opportunities", s.Title)
	}
}

func TestIntermediateUserInsights(t *testing.T) {
	e, _ := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())
	b := behavior.Default()
	b.ExpertiseLevel = behavior.Intermediate
	b.FrequentViews = []string{"roadmap"}

	got := e.GenerateSuggestions(context.Background(),
		activity.Context{CurrentView: "roadmap", SelectedIndustry: "banking", PageData: map[string]interface{}{"projects": 3}},
		b, nil)

	titles := make(map[string]bool)
	for _, s := range got {
		titles[s.Title] = true
	}
	assert.True(t, titles["Explore banking architecture best practices"])
	assert.True(t, titles["Discover integration opportunities"])
	assert.True(t, titles["Complete your data for better insights"])
}

func TestPeakTimeSuggestionExpires(t *testing.T) {
	e, clock := newTestEngine(DefaultRules(DefaultCatalog()), persistence.NewMemoryStore())
	b := behavior.Default()
	b.FrequentViews = []string{"roadmap"}
	b.WorkPatterns.PeakHours = []int{clock.Now().Hour()}

	var acts []activity.Activity
	for i := 0; i < 11; i++ {
		acts = append(acts, activity.New(activity.TypeViewChange, activity.Details{View: "roadmap", Action: fmt.Sprintf("a%d", i)}, clock.Now()))
	}

	got := findByType(e.GenerateSuggestions(context.Background(), activity.Context{CurrentView: "roadmap"}, b, acts), TypeOptimization)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ExpiresAt)
	assert.True(t, got[0].ExpiresAt.Equal(time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local)))
}

func TestCatalogTitle(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "Target State Architecture", c.Title("target-state"))
	assert.Equal(t, "Vendor Risk Matrix", c.Title("vendor-risk_matrix"))

	title := c.Title("übersicht-karte")
	assert.Equal(t, "Übersicht Karte", title)
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, "Éco Système", c.Title("éco--système"))
	assert.True(t, IsIntegrationView("Integration-Hub"))
	assert.False(t, IsIntegrationView("roadmap"))
}

func TestCatalogAllActions(t *testing.T) {
	all := DefaultCatalog().AllActions()
	assert.Len(t, all, 14)
	assert.Equal(t, "analyze-capability-coverage", all[0].ID, "business-capabilities sorts first")

	_, ok := DefaultCatalog().Action("generate-roadmap")
	assert.True(t, ok)
}
