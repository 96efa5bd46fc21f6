// Package suggestions ranks contextual recommendations produced by condition/generator rules.
package suggestions

import (
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/behavior"
)

// Type classifies a suggestion
type Type string

const (
	TypeAction       Type = "action"
	TypeInsight      Type = "insight"
	TypeAutomation   Type = "automation"
	TypeWorkflow     Type = "workflow"
	TypeLearning     Type = "learning"
	TypeOptimization Type = "optimization"
)

// Priority of a suggestion
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Bonus is the score contribution of the priority
func (p Priority) Bonus() float64 {
	switch p {
	case PriorityCritical:
		return 0.30
	case PriorityHigh:
		return 0.20
	case PriorityMedium:
		return 0.10
	default:
		return 0
	}
}

// AnyLevel matches every expertise level
const AnyLevel = "any"

// Context snapshots where and for whom a suggestion was generated
type Context struct {
	View      string `json:"view"`
	Industry  string `json:"industry,omitempty"`
	UserLevel string `json:"userLevel"`
}

// SmartSuggestion is one candidate recommendation
type SmartSuggestion struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Priority       Priority               `json:"priority"`
	Confidence     float64                `json:"confidence"`
	RelevanceScore float64                `json:"relevanceScore"`
	Category       string                 `json:"category"`
	Triggers       []string               `json:"triggers"`
	ActionID       string                 `json:"actionId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	TimesSuggested int                    `json:"timesSuggested"`
	TimesAccepted  int                    `json:"timesAccepted"`
	Context        Context                `json:"context"`
}

// dedupKey is the composite uniqueness key (type, title, view)
func (s SmartSuggestion) dedupKey() string {
	return string(s.Type) + "\x00" + s.Title + "\x00" + s.Context.View
}

// Input is everything a rule may look at
type Input struct {
	Context    activity.Context
	Behavior   behavior.UserBehavior
	Activities []activity.Activity
	Now        time.Time
}

// Rule pairs a condition with a generator. Lower Priority is evaluated first.
type Rule struct {
	ID              string
	Priority        int
	CooldownMinutes int
	Condition       func(Input) bool
	Generator       func(Input) []SmartSuggestion
}

func (r Rule) cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}
