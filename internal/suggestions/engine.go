package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/behavior"
	"github.com/saaga0h/ea-advisor/internal/persistence"
)

// MaxReturned caps the suggestions returned per generation pass
const MaxReturned = 5

// ErrSuggestionNotFound is returned for ids absent from history
var ErrSuggestionNotFound = errors.New("suggestion not found")

// Engine evaluates rules, ranks the results and keeps suggestion history and
// per (rule, view) cooldowns. It is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	rules     []Rule
	history   map[string]SmartSuggestion
	cooldowns map[string]time.Time
	store     persistence.Store
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates an engine. A nil now defaults to time.Now.
func NewEngine(rules []Rule, store persistence.Store, now func() time.Time, logger *slog.Logger) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	if now == nil {
		now = time.Now
	}

	return &Engine{
		rules:     sorted,
		history:   make(map[string]SmartSuggestion),
		cooldowns: make(map[string]time.Time),
		store:     store,
		now:       now,
		logger:    logger,
	}
}

// Load rehydrates history and cooldowns. Missing or malformed documents are
// logged and the engine proceeds with empty state.
func (e *Engine) Load(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := make(map[string]SmartSuggestion)
	if err := persistence.LoadJSON(ctx, e.store, persistence.KeySuggestionHistory, &history); err != nil {
		e.logLoadError(persistence.KeySuggestionHistory, err)
	} else {
		e.history = history
	}

	cooldowns := make(map[string]time.Time)
	if err := persistence.LoadJSON(ctx, e.store, persistence.KeySuggestionCooldowns, &cooldowns); err != nil {
		e.logLoadError(persistence.KeySuggestionCooldowns, err)
	} else {
		e.cooldowns = cooldowns
	}

	e.logger.Info("Suggestion state loaded", "history", len(e.history), "cooldowns", len(e.cooldowns))
}

func (e *Engine) logLoadError(key string, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		e.logger.Debug("No persisted state", "key", key)
		return
	}
	e.logger.Warn("Failed to load persisted state, using defaults", "key", key, "error", err)
}

// GenerateSuggestions runs every rule outside its cooldown, deduplicates and
// scores the candidates and returns the best MaxReturned.
func (e *Engine) GenerateSuggestions(ctx context.Context, pc activity.Context, b behavior.UserBehavior, activities []activity.Activity) []SmartSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	in := Input{Context: pc, Behavior: b, Activities: activities, Now: now}

	var candidates []SmartSuggestion
	for _, rule := range e.rules {
		key := rule.ID + "_" + pc.CurrentView
		if last, ok := e.cooldowns[key]; ok && rule.CooldownMinutes > 0 && now.Before(last.Add(rule.cooldown())) {
			continue
		}
		if rule.Condition == nil || !rule.Condition(in) {
			continue
		}

		generated := rule.Generator(in)
		candidates = append(candidates, generated...)
		if rule.CooldownMinutes > 0 {
			e.cooldowns[key] = now
		}
		e.logger.Debug("Suggestion rule fired", "rule_id", rule.ID, "view", pc.CurrentView, "generated", len(generated))
	}

	unique := Deduplicate(candidates)

	previous := make(map[string]SmartSuggestion, len(e.history))
	for _, s := range e.history {
		prev, seen := previous[s.dedupKey()]
		if !seen || s.TimesSuggested+s.TimesAccepted > prev.TimesSuggested+prev.TimesAccepted {
			previous[s.dedupKey()] = s
		}
	}

	for i := range unique {
		if prev, ok := previous[unique[i].dedupKey()]; ok {
			unique[i].TimesSuggested = prev.TimesSuggested
			unique[i].TimesAccepted = prev.TimesAccepted
		}
		unique[i].RelevanceScore = Score(unique[i], pc, b, now)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].RelevanceScore > unique[j].RelevanceScore
	})

	for _, s := range unique {
		e.history[s.ID] = s
	}
	e.persist(ctx)

	return head(unique, MaxReturned)
}

// Deduplicate drops later candidates sharing (type, title, view) with an earlier one
func Deduplicate(candidates []SmartSuggestion) []SmartSuggestion {
	seen := make(map[string]bool, len(candidates))
	out := make([]SmartSuggestion, 0, len(candidates))
	for _, s := range candidates {
		k := s.dedupKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// Score computes the final relevance of a suggestion, clamped to [0, 1]
func Score(s SmartSuggestion, pc activity.Context, b behavior.UserBehavior, now time.Time) float64 {
	score := s.RelevanceScore*0.4 + s.Confidence*0.3 + s.Priority.Bonus()

	if s.Context.UserLevel == AnyLevel || s.Context.UserLevel == string(b.ExpertiseLevel) {
		score += 0.1
	}
	if s.Context.View == pc.CurrentView {
		score += 0.1
	}
	if s.TimesAccepted > 0 {
		shown := s.TimesSuggested
		if shown < 1 {
			shown = 1
		}
		score += 0.1 * float64(s.TimesAccepted) / float64(shown)
	}
	if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
		score *= 0.5
	}

	switch {
	case score > 1:
		return 1
	case score < 0:
		return 0
	}
	return score
}

// MarkShown records that a suggestion was displayed
func (e *Engine) MarkShown(ctx context.Context, id string) error {
	return e.update(ctx, id, func(s *SmartSuggestion) { s.TimesSuggested++ })
}

// MarkAccepted records that a suggestion was acted on
func (e *Engine) MarkAccepted(ctx context.Context, id string) error {
	return e.update(ctx, id, func(s *SmartSuggestion) { s.TimesAccepted++ })
}

func (e *Engine) update(ctx context.Context, id string, fn func(*SmartSuggestion)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.history[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSuggestionNotFound)
	}
	fn(&s)
	e.history[id] = s
	e.persist(ctx)
	return nil
}

// Get returns one suggestion from history
func (e *Engine) Get(id string) (SmartSuggestion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.history[id]
	return s, ok
}

// History returns every stored suggestion, best score first
func (e *Engine) History() []SmartSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SmartSuggestion, 0, len(e.history))
	for _, s := range e.history {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ClearHistory wipes history, cooldowns and their persisted copies
func (e *Engine) ClearHistory(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = make(map[string]SmartSuggestion)
	e.cooldowns = make(map[string]time.Time)

	for _, key := range []string{persistence.KeySuggestionHistory, persistence.KeySuggestionCooldowns} {
		if err := e.store.Delete(ctx, key); err != nil {
			e.logger.Warn("Failed to delete persisted state", "key", key, "error", err)
		}
	}
}

// persist writes history and cooldowns; failures are logged only.
// Callers hold e.mu.
func (e *Engine) persist(ctx context.Context) {
	if err := persistence.SaveJSON(ctx, e.store, persistence.KeySuggestionHistory, e.history); err != nil {
		e.logger.Warn("Failed to persist suggestion history", "error", err)
	}
	if err := persistence.SaveJSON(ctx, e.store, persistence.KeySuggestionCooldowns, e.cooldowns); err != nil {
		e.logger.Warn("Failed to persist suggestion cooldowns", "error", err)
	}
}
