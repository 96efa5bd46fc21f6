package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/saaga0h/ea-advisor/internal/actions"
	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/pkg/llm"
)

var (
	// ErrRuleNotFound is returned for unknown rule ids
	ErrRuleNotFound = errors.New("automation rule not found")
	// ErrRuleNotReady is returned when a gate blocks a manual execution
	ErrRuleNotReady = errors.New("automation rule not ready")
)

// DefaultInterpretTimeout bounds one chat call interpreting a free-text command
const DefaultInterpretTimeout = 30 * time.Second

// dailyInsightsHour is the local hour daily-insights becomes due
const dailyInsightsHour = 9

// Engine holds the rule registry and fires matched rules through an executor.
// mu guards the registry only; executor and chat calls run unlocked. A rule
// is claimed in running while its action is in flight.
type Engine struct {
	mu             sync.Mutex
	rules          map[string]*Rule
	running        map[string]bool
	conditions     map[string]ConditionFunc
	enabled        bool
	commandHistory []CommandResult

	executor         actions.Executor
	chat             llm.ChatClient
	store            persistence.Store
	interpretTimeout time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// NewEngine creates an engine seeded with DefaultRules. chat may be nil, in
// which case free-text commands always fall back.
func NewEngine(executor actions.Executor, chat llm.ChatClient, store persistence.Store, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		rules:            make(map[string]*Rule),
		running:          make(map[string]bool),
		conditions:       DefaultConditions(),
		enabled:          true,
		executor:         executor,
		chat:             chat,
		store:            store,
		interpretTimeout: DefaultInterpretTimeout,
		now:              now,
		logger:           logger,
	}
	for _, r := range DefaultRules() {
		rule := r
		e.rules[rule.ID] = &rule
	}
	return e
}

// SetInterpretTimeout changes the deadline of command interpretation calls
func (e *Engine) SetInterpretTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interpretTimeout = d
}

// RegisterCondition makes a predicate available to condition triggers
func (e *Engine) RegisterCondition(name string, fn ConditionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conditions[name] = fn
}

// AddRules inserts or replaces rules (e.g. from a rules file) and persists
func (e *Engine) AddRules(ctx context.Context, rules ...Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range rules {
		rule := r
		if existing, ok := e.rules[rule.ID]; ok {
			rule.ExecutionCount = existing.ExecutionCount
			rule.LastExecuted = existing.LastExecuted
			rule.SuccessRate = existing.SuccessRate
			rule.ExecutionHistory = existing.ExecutionHistory
		}
		e.rules[rule.ID] = &rule
	}
	e.persist(ctx)
}

// Load merges persisted rules over the defaults. Missing or malformed state
// is logged and the defaults are kept.
func (e *Engine) Load(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored := make(map[string]Rule)
	if err := persistence.LoadJSON(ctx, e.store, persistence.KeyAutomationRules, &stored); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			e.logger.Debug("No persisted automation rules")
		} else {
			e.logger.Warn("Failed to load automation rules, using defaults", "error", err)
		}
		return
	}

	for id, r := range stored {
		rule := r
		if rule.ID == "" {
			rule.ID = id
		}
		e.rules[rule.ID] = &rule
	}
	e.logger.Info("Automation rules loaded", "count", len(stored))
}

// Enable turns the global automation flag on
func (e *Engine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

// Disable turns the global automation flag off; no rule fires while off
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
}

// Enabled reports the global automation flag
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetRuleEnabled toggles one rule and persists
func (e *Engine) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrRuleNotFound)
	}
	rule.Enabled = enabled
	e.persist(ctx)
	e.logger.Info("Automation rule toggled", "rule_id", id, "enabled", enabled)
	return nil
}

// Rules returns a copy of every rule, highest priority (lowest number) first
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.sortedRules() {
		out = append(out, r.clone())
	}
	return out
}

// Rule returns a copy of one rule
func (e *Engine) Rule(id string) (Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%s: %w", id, ErrRuleNotFound)
	}
	return r.clone(), nil
}

// ExecutionHistory returns the last execution timestamps of a rule
func (e *Engine) ExecutionHistory(id string) ([]time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrRuleNotFound)
	}
	return append([]time.Time(nil), r.ExecutionHistory...), nil
}

// CommandHistory returns processed commands, oldest first
func (e *Engine) CommandHistory() []CommandResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CommandResult(nil), e.commandHistory...)
}

// CheckTriggers fires every automatic rule whose gates pass and whose
// trigger matches the recent activities
func (e *Engine) CheckTriggers(ctx context.Context, pc activity.Context, activities []activity.Activity) []Execution {
	e.mu.Lock()
	now := e.now()
	var due []Rule
	for _, rule := range e.sortedRules() {
		if rule.Trigger.Type == TriggerTime || rule.Trigger.Type == TriggerManual {
			continue
		}
		if reason := e.blocked(rule, now); reason != "" {
			continue
		}
		if !e.matches(rule, pc, activities) {
			continue
		}
		due = append(due, e.claim(rule))
	}
	e.mu.Unlock()

	return e.executeAll(ctx, due, pc, now)
}

// RunScheduled fires time-triggered rules. Only daily-insights has a
// schedule: it runs on the first call at or after 09:00 local time on a day
// it has not yet run since 09:00.
func (e *Engine) RunScheduled(ctx context.Context, pc activity.Context, now time.Time) []Execution {
	e.mu.Lock()
	var due []Rule
	for _, rule := range e.sortedRules() {
		if rule.Trigger.Type != TriggerTime || rule.ID != DailyInsightsRuleID {
			continue
		}
		if !dailyDue(rule, now) {
			continue
		}
		if reason := e.blocked(rule, now); reason != "" {
			e.logger.Debug("Scheduled rule skipped", "rule_id", rule.ID, "reason", reason)
			continue
		}
		due = append(due, e.claim(rule))
	}
	e.mu.Unlock()

	return e.executeAll(ctx, due, pc, now)
}

func dailyDue(rule *Rule, now time.Time) bool {
	dueAt := time.Date(now.Year(), now.Month(), now.Day(), dailyInsightsHour, 0, 0, 0, now.Location())
	if now.Before(dueAt) {
		return false
	}
	return rule.LastExecuted == nil || rule.LastExecuted.Before(dueAt)
}

// ExecuteRule runs a rule on demand. Gates apply; the trigger is not matched.
func (e *Engine) ExecuteRule(ctx context.Context, id string, pc activity.Context) (Execution, error) {
	e.mu.Lock()
	rule, ok := e.rules[id]
	if !ok {
		e.mu.Unlock()
		return Execution{}, fmt.Errorf("%s: %w", id, ErrRuleNotFound)
	}
	now := e.now()
	if reason := e.blocked(rule, now); reason != "" {
		e.mu.Unlock()
		return Execution{}, fmt.Errorf("%s %s: %w", id, reason, ErrRuleNotReady)
	}
	claimed := e.claim(rule)
	e.mu.Unlock()

	return e.execute(ctx, claimed, pc, now), nil
}

// blocked returns why the gates stop a rule, or "" when it may run.
// Gate order: enabled, global flag, in flight, cooldown, max executions.
func (e *Engine) blocked(rule *Rule, now time.Time) string {
	switch {
	case !rule.Enabled:
		return "disabled"
	case !e.enabled:
		return "automation disabled"
	case e.running[rule.ID]:
		return "already running"
	case rule.InCooldown(now):
		return "in cooldown"
	case rule.Exhausted():
		return "max executions reached"
	}
	return ""
}

// claim marks a rule in flight and returns a copy to run. Callers hold e.mu.
func (e *Engine) claim(rule *Rule) Rule {
	e.running[rule.ID] = true
	return rule.clone()
}

func (e *Engine) matches(rule *Rule, pc activity.Context, activities []activity.Activity) bool {
	switch rule.Trigger.Type {
	case TriggerActivity:
		return MatchActivity(rule.Trigger.Pattern, activities)
	case TriggerPattern:
		return DetectPattern(rule.Trigger.Pattern, activities)
	case TriggerCondition:
		fn, ok := e.conditions[rule.Trigger.Condition]
		if !ok {
			e.logger.Warn("Unknown trigger condition", "rule_id", rule.ID, "condition", rule.Trigger.Condition)
			return false
		}
		return fn(pc, activities)
	}
	return false
}

func (e *Engine) executeAll(ctx context.Context, due []Rule, pc activity.Context, now time.Time) []Execution {
	var executed []Execution
	for _, rule := range due {
		executed = append(executed, e.execute(ctx, rule, pc, now))
	}
	return executed
}

// execute runs the action of a claimed rule without holding e.mu, then
// records the outcome and releases the claim
func (e *Engine) execute(ctx context.Context, rule Rule, pc activity.Context, now time.Time) Execution {
	var result actions.Result
	switch rule.Action.Type {
	case ActionAI:
		result = e.runAction(ctx, rule.Action.ActionID, pc, rule.Action.Parameters)
	case ActionCommand:
		result = e.ProcessCommand(ctx, rule.Action.Command, pc).Result
	case ActionNotification, ActionWorkflow:
		result = actions.Result{Success: true, Data: rule.Description}
	default:
		result = actions.Failure(fmt.Sprintf("unknown action type: %s", rule.Action.Type))
	}

	e.mu.Lock()
	delete(e.running, rule.ID)
	count, rate := 0, 0.0
	if current, ok := e.rules[rule.ID]; ok {
		current.record(result.Success, now)
		count, rate = current.ExecutionCount, current.SuccessRate
		e.persist(ctx)
	}
	e.mu.Unlock()

	if result.Success {
		e.logger.Info("Automation rule executed", "rule_id", rule.ID, "executions", count)
	} else {
		e.logger.Warn("Automation rule failed", "rule_id", rule.ID, "error", result.Error, "success_rate", rate)
	}

	return Execution{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Trigger:    rule.Trigger.Type,
		Result:     result,
		ExecutedAt: now,
	}
}

func (e *Engine) sortedRules() []*Rule {
	out := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// persist writes the full rule map; failures are logged only. Callers hold e.mu.
func (e *Engine) persist(ctx context.Context) {
	snapshot := make(map[string]Rule, len(e.rules))
	for id, r := range e.rules {
		snapshot[id] = r.clone()
	}
	if err := persistence.SaveJSON(ctx, e.store, persistence.KeyAutomationRules, snapshot); err != nil {
		e.logger.Warn("Failed to persist automation rules", "error", err)
	}
}
