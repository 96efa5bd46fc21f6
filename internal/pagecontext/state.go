// Package pagecontext holds the dashboard page context as reducer-driven state.
package pagecontext

import (
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/behavior"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
)

// MaxViewHistory caps the remembered view sequence
const MaxViewHistory = 50

// State is the page context of one session. Values are never mutated in
// place; Reduce always builds new slices.
type State struct {
	CurrentView             string
	SelectedIndustry        string
	PageData                map[string]interface{}
	ViewHistory             []string
	Activities              activity.Log
	UserBehavior            behavior.UserBehavior
	Suggestions             []suggestions.SmartSuggestion
	AutomationOpportunities []automation.Opportunity
	TrackingEnabled         bool
	SessionStart            time.Time
}

// NewState returns the initial state of a session started at start
func NewState(start time.Time) State {
	return State{
		ViewHistory:     []string{},
		UserBehavior:    behavior.Default(),
		TrackingEnabled: true,
		SessionStart:    start,
	}
}

// Context snapshots what the engines evaluate against
func (s State) Context() activity.Context {
	return activity.Context{
		CurrentView:      s.CurrentView,
		SelectedIndustry: s.SelectedIndustry,
		PageData:         s.PageData,
	}
}

// Action is a state transition. The concrete types below form a closed set.
type Action interface {
	actionName() string
}

type (
	SetView struct{ View string }

	SetIndustry struct{ Industry string }

	SetPageData struct{ Data map[string]interface{} }

	TrackActivity struct{ Activity activity.Activity }

	UpdateBehavior struct{ Behavior behavior.UserBehavior }

	SetSuggestions struct {
		Suggestions []suggestions.SmartSuggestion
	}

	SetAutomationOpportunities struct {
		Opportunities []automation.Opportunity
	}

	SetTracking struct{ Enabled bool }

	// Reset starts a new session at At
	Reset struct{ At time.Time }
)

func (SetView) actionName() string                    { return "SET_VIEW" }
func (SetIndustry) actionName() string                { return "SET_INDUSTRY" }
func (SetPageData) actionName() string                { return "SET_PAGE_DATA" }
func (TrackActivity) actionName() string              { return "TRACK_ACTIVITY" }
func (UpdateBehavior) actionName() string             { return "UPDATE_BEHAVIOR" }
func (SetSuggestions) actionName() string             { return "SET_SUGGESTIONS" }
func (SetAutomationOpportunities) actionName() string { return "SET_AUTOMATION_OPPORTUNITIES" }
func (SetTracking) actionName() string                { return "SET_TRACKING" }
func (Reset) actionName() string                      { return "RESET" }

// Name returns the wire name of an action
func Name(a Action) string {
	return a.actionName()
}

// Reduce applies a to s and returns the next state. It has no side effects.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetView:
		if a.View == s.CurrentView {
			return s
		}
		s.CurrentView = a.View
		s.ViewHistory = appendCapped(s.ViewHistory, a.View, MaxViewHistory)
	case SetIndustry:
		s.SelectedIndustry = a.Industry
	case SetPageData:
		s.PageData = a.Data
	case TrackActivity:
		if !s.TrackingEnabled {
			return s
		}
		s.Activities = s.Activities.Append(a.Activity)
	case UpdateBehavior:
		s.UserBehavior = a.Behavior
	case SetSuggestions:
		s.Suggestions = a.Suggestions
	case SetAutomationOpportunities:
		s.AutomationOpportunities = a.Opportunities
	case SetTracking:
		s.TrackingEnabled = a.Enabled
	case Reset:
		return NewState(a.At)
	}
	return s
}

func appendCapped(list []string, v string, max int) []string {
	start := 0
	if len(list)+1 > max {
		start = len(list) + 1 - max
	}
	out := make([]string, 0, len(list)-start+1)
	out = append(out, list[start:]...)
	return append(out, v)
}
