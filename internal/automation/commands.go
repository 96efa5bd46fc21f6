package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/saaga0h/ea-advisor/internal/actions"
	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/pkg/llm"
)

// Executor action ids the keyword routes dispatch to
const (
	actionAnalyze  = "analyze-current-view"
	actionGenerate = "generate-content"
	actionOptimize = "optimize-architecture"
	actionSearch   = "search-data"
	actionReport   = "generate-report"
)

const customRuleCooldown = 30

// CustomRulePrefix starts the id of every rule created by an automate command
const CustomRulePrefix = "custom-"

// CustomRuleLabel is the metric label all custom rules share
const CustomRuleLabel = "custom"

// MetricLabel returns the rule id, or CustomRuleLabel for custom rules
func MetricLabel(ruleID string) string {
	if strings.HasPrefix(ruleID, CustomRulePrefix) {
		return CustomRuleLabel
	}
	return ruleID
}

var fallbackSuggestions = []string{
	`Try "analyze this view"`,
	`Try "generate a transition plan"`,
	`Try "automate list"`,
}

const interpretPrompt = `You interpret commands typed into an enterprise architecture dashboard.
Map the command to one action and answer with JSON only:
{"action": "<analyze|generate|optimize|search|report|automate|answer|action id>", "parameters": {}, "explanation": "<why>"}
Use "answer" with parameters.response for questions that need no action.`

type interpretation struct {
	Action      string                 `json:"action"`
	Parameters  map[string]interface{} `json:"parameters"`
	Explanation string                 `json:"explanation"`
}

// ProcessCommand routes a natural-language command by keyword, falling back
// to AI interpretation, and records it in the command history. Executor and
// chat calls run without holding e.mu.
func (e *Engine) ProcessCommand(ctx context.Context, text string, pc activity.Context) CommandResult {
	trimmed := strings.TrimSpace(text)
	cmd := strings.ToLower(trimmed)

	res := CommandResult{Command: trimmed, Timestamp: e.now()}
	params := map[string]interface{}{"query": trimmed}

	switch {
	case cmd == "":
		res.Route = RouteInterpreted
		res.Result = actions.Failure("empty command", fallbackSuggestions...)
	case strings.Contains(cmd, "analyze"):
		res.Route = RouteAnalysis
		res.Result = e.runAction(ctx, actionAnalyze, pc, params)
	case strings.Contains(cmd, "generate"), strings.Contains(cmd, "create"):
		res.Route = RouteGeneration
		res.Result = e.runAction(ctx, actionGenerate, pc, params)
	case strings.Contains(cmd, "optimize"):
		res.Route = RouteOptimization
		res.Result = e.runAction(ctx, actionOptimize, pc, params)
	case strings.Contains(cmd, "automate"):
		res.Route = RouteAutomation
		res.Result = e.handleAutomation(ctx, trimmed)
	case strings.Contains(cmd, "search"):
		res.Route = RouteSearch
		res.Result = e.runAction(ctx, actionSearch, pc, params)
	case strings.Contains(cmd, "report"):
		res.Route = RouteReport
		res.Result = e.runAction(ctx, actionReport, pc, params)
	default:
		res.Route = RouteInterpreted
		res.Result, res.Explanation = e.interpret(ctx, trimmed, pc)
	}

	e.mu.Lock()
	e.commandHistory = append(e.commandHistory, res)
	if len(e.commandHistory) > MaxCommandHistory {
		e.commandHistory = e.commandHistory[len(e.commandHistory)-MaxCommandHistory:]
	}
	e.mu.Unlock()

	e.logger.Info("Command processed", "route", res.Route, "success", res.Result.Success)
	return res
}

func (e *Engine) runAction(ctx context.Context, actionID string, pc activity.Context, params map[string]interface{}) actions.Result {
	if e.executor == nil {
		return actions.Failure("no action executor configured")
	}
	return e.executor.Execute(ctx, actionID, pc, params)
}

// handleAutomation understands:
//
//	automate list
//	automate enable <rule-id>
//	automate disable <rule-id>
//	automate <action-id> when <pattern>
//	automate <command>
func (e *Engine) handleAutomation(ctx context.Context, text string) actions.Result {
	fields := strings.Fields(text)
	idx := 0
	for idx < len(fields) && !strings.EqualFold(fields[idx], "automate") {
		idx++
	}
	args := fields[min(idx+1, len(fields)):]

	if len(args) == 0 || strings.EqualFold(args[0], "list") {
		return actions.Result{Success: true, Data: e.ruleSummaries()}
	}

	switch strings.ToLower(args[0]) {
	case "enable", "disable":
		if len(args) < 2 {
			return actions.Failure("missing rule id", `Try "automate list" to see rule ids`)
		}
		enabled := strings.EqualFold(args[0], "enable")
		if err := e.SetRuleEnabled(ctx, args[1], enabled); err != nil {
			return actions.Failure(err.Error(), `Try "automate list" to see rule ids`)
		}
		return actions.Result{Success: true, Data: fmt.Sprintf("rule %s %sd", args[1], strings.ToLower(args[0]))}
	}

	if len(args) >= 3 && strings.EqualFold(args[1], "when") {
		rule := e.addCustomRule(ctx, Rule{
			Name:            fmt.Sprintf("Run %s on %s", args[0], args[2]),
			Description:     text,
			Trigger:         Trigger{Type: TriggerActivity, Pattern: args[2]},
			Action:          Action{Type: ActionAI, ActionID: args[0]},
			CooldownMinutes: customRuleCooldown,
		})
		return actions.Result{Success: true, Data: rule, NextActions: []string{"automate disable " + rule.ID}}
	}

	command := strings.Join(args, " ")
	rule := e.addCustomRule(ctx, Rule{
		Name:        "Manual: " + command,
		Description: text,
		Trigger:     Trigger{Type: TriggerManual},
		Action:      Action{Type: ActionCommand, Command: command},
	})
	return actions.Result{Success: true, Data: rule}
}

func (e *Engine) addCustomRule(ctx context.Context, rule Rule) Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule.ID = CustomRulePrefix + uuid.NewString()[:8]
	rule.Enabled = true
	rule.Priority = len(e.rules) + 1
	e.rules[rule.ID] = &rule
	e.persist(ctx)
	e.logger.Info("Custom automation rule created", "rule_id", rule.ID, "trigger", rule.Trigger.Type)
	return rule.clone()
}

type ruleSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Enabled        bool    `json:"enabled"`
	ExecutionCount int     `json:"executionCount"`
	SuccessRate    float64 `json:"successRate"`
}

func (e *Engine) ruleSummaries() []ruleSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ruleSummary
	for _, r := range e.sortedRules() {
		out = append(out, ruleSummary{
			ID:             r.ID,
			Name:           r.Name,
			Enabled:        r.Enabled,
			ExecutionCount: r.ExecutionCount,
			SuccessRate:    r.SuccessRate,
		})
	}
	return out
}

func (e *Engine) interpretContext(ctx context.Context) (context.Context, context.CancelFunc) {
	e.mu.Lock()
	timeout := e.interpretTimeout
	e.mu.Unlock()
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// interpret asks the chat model what the command means and dispatches on its
// answer. Any failure yields the static fallback; there is no retry.
func (e *Engine) interpret(ctx context.Context, text string, pc activity.Context) (actions.Result, string) {
	if e.chat == nil {
		return actions.Failure("I couldn't understand that command", fallbackSuggestions...), ""
	}

	chatCtx, cancel := e.interpretContext(ctx)
	reply, err := e.chat.ChatCompletion(chatCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: interpretPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("View: %s\nCommand: %s", pc.CurrentView, text)},
	})
	cancel()
	if err != nil {
		e.logger.Warn("Command interpretation failed", "error", err)
		return actions.Failure(fmt.Sprintf("command interpretation failed: %v", err), fallbackSuggestions...), ""
	}

	parsed, err := llm.ParseJSON[interpretation](reply)
	if err != nil || parsed.Action == "" {
		e.logger.Warn("Unparseable command interpretation", "reply", reply)
		return actions.Failure("I couldn't understand that command", fallbackSuggestions...), ""
	}

	params := parsed.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	params["query"] = text

	switch strings.ToLower(parsed.Action) {
	case "analyze":
		return e.runAction(ctx, actionAnalyze, pc, params), parsed.Explanation
	case "generate", "create":
		return e.runAction(ctx, actionGenerate, pc, params), parsed.Explanation
	case "optimize":
		return e.runAction(ctx, actionOptimize, pc, params), parsed.Explanation
	case "search":
		return e.runAction(ctx, actionSearch, pc, params), parsed.Explanation
	case "report":
		return e.runAction(ctx, actionReport, pc, params), parsed.Explanation
	case "automate":
		command, _ := params["command"].(string)
		return e.handleAutomation(ctx, "automate "+command), parsed.Explanation
	case "answer":
		response, _ := params["response"].(string)
		if response == "" {
			response = parsed.Explanation
		}
		return actions.Result{Success: true, Data: response}, parsed.Explanation
	}
	return e.runAction(ctx, parsed.Action, pc, params), parsed.Explanation
}
