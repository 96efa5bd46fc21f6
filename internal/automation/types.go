// Package automation fires persistent trigger/action rules against the activity log.
package automation

import (
	"time"

	"github.com/saaga0h/ea-advisor/internal/actions"
)

// TriggerType selects how a rule is matched
type TriggerType string

const (
	TriggerTime      TriggerType = "time"
	TriggerActivity  TriggerType = "activity"
	TriggerPattern   TriggerType = "pattern"
	TriggerCondition TriggerType = "condition"
	TriggerManual    TriggerType = "manual"
)

// ActionType selects what a rule does when it fires
type ActionType string

const (
	ActionAI           ActionType = "ai_action"
	ActionCommand      ActionType = "command"
	ActionNotification ActionType = "notification"
	ActionWorkflow     ActionType = "workflow"
)

// Trigger describes when a rule fires. Only the field matching Type is used.
type Trigger struct {
	Type     TriggerType `json:"type" yaml:"type"`
	Schedule string      `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Pattern  string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	// Condition names a predicate registered with the engine
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Action describes what a rule does
type Action struct {
	Type       ActionType             `json:"type" yaml:"type"`
	ActionID   string                 `json:"actionId,omitempty" yaml:"actionId,omitempty"`
	Command    string                 `json:"command,omitempty" yaml:"command,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// MaxExecutionHistory bounds the per-rule execution timestamps
const MaxExecutionHistory = 10

// Rule binds a trigger to an action, with execution bookkeeping.
// CooldownMinutes and MaxExecutions are disabled when zero.
type Rule struct {
	ID               string      `json:"id" yaml:"id"`
	Name             string      `json:"name" yaml:"name"`
	Description      string      `json:"description" yaml:"description"`
	Trigger          Trigger     `json:"trigger" yaml:"trigger"`
	Action           Action      `json:"action" yaml:"action"`
	Enabled          bool        `json:"enabled" yaml:"enabled"`
	Priority         int         `json:"priority" yaml:"priority"`
	CooldownMinutes  int         `json:"cooldownMinutes,omitempty" yaml:"cooldownMinutes,omitempty"`
	MaxExecutions    int         `json:"maxExecutions,omitempty" yaml:"maxExecutions,omitempty"`
	ExecutionCount   int         `json:"executionCount" yaml:"-"`
	LastExecuted     *time.Time  `json:"lastExecuted,omitempty" yaml:"-"`
	SuccessRate      float64     `json:"successRate" yaml:"-"`
	ExecutionHistory []time.Time `json:"executionHistory,omitempty" yaml:"-"`
}

// InCooldown reports whether the rule fired less than CooldownMinutes before now
func (r *Rule) InCooldown(now time.Time) bool {
	if r.CooldownMinutes <= 0 || r.LastExecuted == nil {
		return false
	}
	return now.Before(r.LastExecuted.Add(time.Duration(r.CooldownMinutes) * time.Minute))
}

// Exhausted reports whether the rule reached MaxExecutions
func (r *Rule) Exhausted() bool {
	return r.MaxExecutions > 0 && r.ExecutionCount >= r.MaxExecutions
}

// record updates the bookkeeping after an execution, whatever its outcome
func (r *Rule) record(success bool, at time.Time) {
	r.ExecutionCount++
	executed := at
	r.LastExecuted = &executed

	indicator := 0.0
	if success {
		indicator = 1
	}
	r.SuccessRate = (r.SuccessRate*float64(r.ExecutionCount-1) + indicator) / float64(r.ExecutionCount)

	r.ExecutionHistory = append(r.ExecutionHistory, at)
	if len(r.ExecutionHistory) > MaxExecutionHistory {
		r.ExecutionHistory = r.ExecutionHistory[len(r.ExecutionHistory)-MaxExecutionHistory:]
	}
}

func (r *Rule) clone() Rule {
	c := *r
	if r.LastExecuted != nil {
		t := *r.LastExecuted
		c.LastExecuted = &t
	}
	c.ExecutionHistory = append([]time.Time(nil), r.ExecutionHistory...)
	return c
}

// Execution is one fired rule and its outcome
type Execution struct {
	RuleID     string         `json:"ruleId"`
	RuleName   string         `json:"ruleName"`
	Trigger    TriggerType    `json:"trigger"`
	Result     actions.Result `json:"result"`
	ExecutedAt time.Time      `json:"executedAt"`
}

// Command routes
const (
	RouteAnalysis     = "analysis"
	RouteGeneration   = "generation"
	RouteOptimization = "optimization"
	RouteAutomation   = "automation"
	RouteSearch       = "search"
	RouteReport       = "report"
	RouteInterpreted  = "interpreted"
)

// MaxCommandHistory bounds the command history
const MaxCommandHistory = 50

// CommandResult is the outcome of a natural-language command
type CommandResult struct {
	Command     string         `json:"command"`
	Route       string         `json:"route"`
	Result      actions.Result `json:"result"`
	Explanation string         `json:"explanation,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Opportunity is a detected pattern an automation could take over
type Opportunity struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	ActionID    string `json:"actionId,omitempty"`
}
