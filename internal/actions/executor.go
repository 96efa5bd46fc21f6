// Package actions executes AI actions on behalf of the suggestion and automation engines.
package actions

import (
	"context"

	"github.com/saaga0h/ea-advisor/internal/activity"
)

// Result is the outcome of an executed action. Failures are reported through
// Success and Error, never as Go errors.
type Result struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	NextActions []string    `json:"nextActions,omitempty"`
	// Tags classify the result (e.g. data_quality, security)
	Tags []string `json:"tags,omitempty"`
}

// Failure builds an unsuccessful result
func Failure(msg string, suggestions ...string) Result {
	return Result{Success: false, Error: msg, Suggestions: suggestions}
}

// Executor runs an action by id against the current page context
type Executor interface {
	Execute(ctx context.Context, actionID string, pc activity.Context, params map[string]interface{}) Result
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, actionID string, pc activity.Context, params map[string]interface{}) Result

func (f ExecutorFunc) Execute(ctx context.Context, actionID string, pc activity.Context, params map[string]interface{}) Result {
	return f(ctx, actionID, pc, params)
}
