package pagecontext

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/behavior"
	"github.com/saaga0h/ea-advisor/internal/persistence"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
)

// persisted is the serializable subset of State
type persisted struct {
	ViewHistory             []string                      `json:"viewHistory"`
	UserBehavior            behavior.UserBehavior         `json:"userBehavior"`
	Suggestions             []suggestions.SmartSuggestion `json:"suggestions"`
	AutomationOpportunities []automation.Opportunity      `json:"automationOpportunities"`
}

// Store owns the session state and persists it after every change while
// tracking is enabled
type Store struct {
	mu     sync.RWMutex
	state  State
	store  persistence.Store
	logger *slog.Logger
}

// NewStore creates a store holding initial
func NewStore(initial State, store persistence.Store, logger *slog.Logger) *Store {
	return &Store{
		state:  initial,
		store:  store,
		logger: logger,
	}
}

// State returns the current state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies the actions in order and returns the resulting state
func (s *Store) Dispatch(ctx context.Context, actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actions {
		s.state = Reduce(s.state, a)
		s.logger.Debug("Page context action", "action", Name(a))
	}

	if s.state.TrackingEnabled {
		s.persist(ctx)
	}
	return s.state
}

// Load restores the persisted subset. Missing or malformed state is logged and ignored.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p persisted
	if err := persistence.LoadJSON(ctx, s.store, persistence.KeyPageContext, &p); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.logger.Debug("No persisted page context")
		} else {
			s.logger.Warn("Failed to load page context, using defaults", "error", err)
		}
		return
	}

	if p.ViewHistory != nil {
		s.state.ViewHistory = p.ViewHistory
		if len(s.state.ViewHistory) > MaxViewHistory {
			s.state.ViewHistory = s.state.ViewHistory[len(s.state.ViewHistory)-MaxViewHistory:]
		}
	}
	if p.UserBehavior.ExpertiseLevel != "" {
		s.state.UserBehavior = p.UserBehavior
	}
	s.state.Suggestions = p.Suggestions
	s.state.AutomationOpportunities = p.AutomationOpportunities

	s.logger.Info("Page context loaded", "views", len(s.state.ViewHistory))
}

// persist writes the serializable subset, best effort. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) {
	p := persisted{
		ViewHistory:             s.state.ViewHistory,
		UserBehavior:            s.state.UserBehavior,
		Suggestions:             s.state.Suggestions,
		AutomationOpportunities: s.state.AutomationOpportunities,
	}
	if err := persistence.SaveJSON(ctx, s.store, persistence.KeyPageContext, p); err != nil {
		s.logger.Warn("Failed to persist page context", "error", err)
	}
}
