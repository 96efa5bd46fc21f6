// Package advisor wires the activity log, behavior analysis and the suggestion
// and automation engines into one session service.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/behavior"
	"github.com/saaga0h/ea-advisor/internal/metrics"
	"github.com/saaga0h/ea-advisor/internal/pagecontext"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
)

// minLogForAnalysis is the log size the periodic analysis requires (strictly more)
const minLogForAnalysis = 5

// Feedback kinds
const (
	FeedbackShown    = "shown"
	FeedbackAccepted = "accepted"
)

// ContextUpdate changes parts of the page context; nil fields are left alone
type ContextUpdate struct {
	View     *string                `json:"view,omitempty"`
	Industry *string                `json:"industry,omitempty"`
	PageData map[string]interface{} `json:"pageData,omitempty"`
	Tracking *bool                  `json:"tracking,omitempty"`
}

// TickResult is the outcome of one analysis pass
type TickResult struct {
	Ran         bool                          `json:"ran"`
	Behavior    behavior.UserBehavior         `json:"behavior"`
	Suggestions []suggestions.SmartSuggestion `json:"suggestions"`
	Executions  []automation.Execution        `json:"executions"`
}

// Service is the long-lived session object. The synchronous part of an
// analysis pass serializes on tickMu; rule actions run after it is released
// and the automation engine claims each rule before running it.
type Service struct {
	tickMu sync.Mutex

	state       *pagecontext.Store
	suggestions *suggestions.Engine
	automation  *automation.Engine
	metrics     *metrics.Collector
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a session service over already constructed engines
func NewService(state *pagecontext.Store, sugg *suggestions.Engine, auto *automation.Engine, collector *metrics.Collector, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		state:       state,
		suggestions: sugg,
		automation:  auto,
		metrics:     collector,
		now:         now,
		logger:      logger,
	}
}

// Load rehydrates every persisted document
func (s *Service) Load(ctx context.Context) {
	s.state.Load(ctx)
	s.suggestions.Load(ctx)
	s.automation.Load(ctx)
}

// State returns the current page context state
func (s *Service) State() pagecontext.State {
	return s.state.State()
}

// Automation exposes the automation engine for rule management
func (s *Service) Automation() *automation.Engine {
	return s.automation
}

// Suggestions exposes the suggestion engine for history queries
func (s *Service) Suggestions() *suggestions.Engine {
	return s.suggestions
}

// TrackActivity validates and appends an activity. Missing id and timestamp
// are filled in.
func (s *Service) TrackActivity(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	if a.ID == "" {
		a.ID = activity.New(a.Type, a.Details, a.Timestamp).ID
	}
	if err := a.Validate(); err != nil {
		return activity.Activity{}, fmt.Errorf("invalid activity: %w", err)
	}

	st := s.state.Dispatch(ctx, pagecontext.TrackActivity{Activity: a})
	s.metrics.RecordActivity(string(a.Type), st.Activities.Len())
	return a, nil
}

// UpdateContext applies a context change. A view change is also tracked as
// a view_change activity.
func (s *Service) UpdateContext(ctx context.Context, u ContextUpdate) pagecontext.State {
	var actions []pagecontext.Action
	if u.Tracking != nil {
		actions = append(actions, pagecontext.SetTracking{Enabled: *u.Tracking})
	}
	if u.Industry != nil {
		actions = append(actions, pagecontext.SetIndustry{Industry: *u.Industry})
	}
	if u.PageData != nil {
		actions = append(actions, pagecontext.SetPageData{Data: u.PageData})
	}

	prev := s.state.State()
	if u.View != nil && *u.View != prev.CurrentView {
		actions = append(actions,
			pagecontext.SetView{View: *u.View},
			pagecontext.TrackActivity{Activity: activity.New(activity.TypeViewChange, activity.Details{
				View:   *u.View,
				Action: "navigate",
				Data:   map[string]interface{}{"from": prev.CurrentView},
			}, s.now())},
		)
	}

	if len(actions) == 0 {
		return prev
	}
	st := s.state.Dispatch(ctx, actions...)
	if u.View != nil && *u.View != prev.CurrentView {
		s.metrics.RecordActivity(string(activity.TypeViewChange), st.Activities.Len())
	}
	return st
}

// Analyze runs one analysis pass: recompute behavior, generate suggestions,
// check automation triggers. It is a no-op while tracking is disabled or the
// log holds five entries or fewer.
func (s *Service) Analyze(ctx context.Context) TickResult {
	s.tickMu.Lock()
	st := s.state.State()
	if !st.TrackingEnabled || st.Activities.Len() <= minLogForAnalysis {
		s.tickMu.Unlock()
		return TickResult{Behavior: st.UserBehavior}
	}

	now := s.now()
	entries := st.Activities.Entries()

	b, ok := behavior.Analyze(st.UserBehavior, entries, st.CurrentView, st.SessionStart, now)
	if ok {
		st = s.state.Dispatch(ctx, pagecontext.UpdateBehavior{Behavior: b})
	}

	generated := s.generate(ctx, st)
	s.state.Dispatch(ctx, pagecontext.SetAutomationOpportunities{
		Opportunities: automation.DetectOpportunities(entries),
	})
	s.tickMu.Unlock()

	executions := s.checkTriggers(ctx, st.Context(), entries)

	s.logger.Debug("Analysis pass complete",
		"activities", len(entries),
		"expertise", b.ExpertiseLevel,
		"suggestions", len(generated),
		"executions", len(executions))

	return TickResult{Ran: true, Behavior: b, Suggestions: generated, Executions: executions}
}

// GenerateSuggestions runs the suggestion engine on demand
func (s *Service) GenerateSuggestions(ctx context.Context) []suggestions.SmartSuggestion {
	return s.generate(ctx, s.state.State())
}

func (s *Service) generate(ctx context.Context, st pagecontext.State) []suggestions.SmartSuggestion {
	generated := s.suggestions.GenerateSuggestions(ctx, st.Context(), st.UserBehavior, st.Activities.Entries())
	s.state.Dispatch(ctx, pagecontext.SetSuggestions{Suggestions: generated})
	for _, sg := range generated {
		s.metrics.RecordSuggestion(string(sg.Type))
	}
	return generated
}

func (s *Service) checkTriggers(ctx context.Context, pc activity.Context, entries []activity.Activity) []automation.Execution {
	executions := s.automation.CheckTriggers(ctx, pc, entries)
	s.recordExecutions(ctx, executions)
	return executions
}

// RunScheduled fires due time-triggered rules
func (s *Service) RunScheduled(ctx context.Context) []automation.Execution {
	executions := s.automation.RunScheduled(ctx, s.state.State().Context(), s.now())
	s.recordExecutions(ctx, executions)
	return executions
}

// ExecuteRule runs one rule on demand
func (s *Service) ExecuteRule(ctx context.Context, id string) (automation.Execution, error) {
	exe, err := s.automation.ExecuteRule(ctx, id, s.state.State().Context())
	if err != nil {
		return automation.Execution{}, err
	}
	s.recordExecutions(ctx, []automation.Execution{exe})
	return exe, nil
}

// recordExecutions counts executions and feeds tagged results back into the
// log as analysis activities so the pattern detectors can see them
func (s *Service) recordExecutions(ctx context.Context, executions []automation.Execution) {
	for _, exe := range executions {
		s.metrics.RecordExecution(automation.MetricLabel(exe.RuleID), string(exe.Trigger), exe.Result.Success)
		if len(exe.Result.Tags) == 0 {
			continue
		}
		s.state.Dispatch(ctx, pagecontext.TrackActivity{Activity: activity.New(activity.TypeAnalysis, activity.Details{
			Action: exe.RuleID,
			Result: exe.Result.Data,
			Tags:   exe.Result.Tags,
		}, exe.ExecutedAt)})
	}
}

// ProcessCommand handles a natural-language command
func (s *Service) ProcessCommand(ctx context.Context, text string) automation.CommandResult {
	res := s.automation.ProcessCommand(ctx, text, s.state.State().Context())
	s.metrics.RecordCommand(res.Route, res.Result.Success)

	if res.Result.Success && len(res.Result.Tags) > 0 {
		s.state.Dispatch(ctx, pagecontext.TrackActivity{Activity: activity.New(activity.TypeAnalysis, activity.Details{
			Action: res.Route,
			Result: res.Result.Data,
			Tags:   res.Result.Tags,
		}, res.Timestamp)})
	}
	return res
}

// Feedback marks a suggestion shown or accepted
func (s *Service) Feedback(ctx context.Context, id, kind string) error {
	var err error
	switch kind {
	case FeedbackShown:
		err = s.suggestions.MarkShown(ctx, id)
	case FeedbackAccepted:
		err = s.suggestions.MarkAccepted(ctx, id)
	default:
		return fmt.Errorf("unknown feedback kind %q", kind)
	}
	if err != nil {
		return err
	}
	s.metrics.RecordFeedback(kind)
	return nil
}

// ClearSuggestionHistory wipes suggestion history and cooldowns
func (s *Service) ClearSuggestionHistory(ctx context.Context) {
	s.suggestions.ClearHistory(ctx)
	s.state.Dispatch(ctx, pagecontext.SetSuggestions{Suggestions: nil})
}
