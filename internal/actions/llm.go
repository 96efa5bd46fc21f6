package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/pkg/llm"
)

const systemPrompt = `You are an enterprise architecture advisor embedded in an architecture dashboard.
You help architects analyze their landscape, generate artifacts and spot risks.
Always answer with a single JSON object and nothing else.`

// Definition describes an action the LLM can perform
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// DefaultDefinitions are the actions the automation rules and command handlers rely on
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "generate-insights", Name: "Daily Insights", Instruction: "Summarize the most important architecture insights for today based on the current view and data."},
		{ID: "data-quality-analysis", Name: "Data Quality Analysis", Instruction: "Review the page data for missing, inconsistent or stale fields and explain how to fix them."},
		{ID: "security-review", Name: "Security Review", Instruction: "Review the current architecture data for security risks and compliance gaps."},
		{ID: "workflow-automation", Name: "Workflow Automation", Instruction: "Propose how the repeated sequence of steps in the parameters could be automated."},
		{ID: "analyze-current-view", Name: "Analyze Current View", Instruction: "Analyze the data shown in the current view and highlight notable findings."},
		{ID: "generate-content", Name: "Generate Content", Instruction: "Generate the artifact requested in the parameters for the current view."},
		{ID: "optimize-architecture", Name: "Optimize Architecture", Instruction: "Suggest optimizations for cost, complexity and reuse in the current architecture."},
		{ID: "search-data", Name: "Search Data", Instruction: "Find the items in the page data that match the query in the parameters."},
		{ID: "generate-report", Name: "Generate Report", Instruction: "Write an executive report of the current view for stakeholders."},
		{ID: "session-summary", Name: "Session Summary", Instruction: "Summarize what the user worked on during this session and what to do next."},
	}
}

// reply is the JSON shape the model is asked to return
type reply struct {
	Summary     string   `json:"summary"`
	Findings    []string `json:"findings"`
	Suggestions []string `json:"suggestions"`
	NextActions []string `json:"nextActions"`
	Tags        []string `json:"tags"`
}

// LLMExecutor executes actions by prompting a chat model
type LLMExecutor struct {
	client  llm.ChatClient
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewLLMExecutor creates an executor knowing defs
func NewLLMExecutor(client llm.ChatClient, timeout time.Duration, logger *slog.Logger, defs ...Definition) *LLMExecutor {
	e := &LLMExecutor{
		client:  client,
		logger:  logger,
		timeout: timeout,
		defs:    make(map[string]Definition),
	}
	e.Register(defs...)
	return e
}

// Register adds or replaces action definitions
func (e *LLMExecutor) Register(defs ...Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range defs {
		e.defs[d.ID] = d
	}
}

// Definitions lists the known actions sorted by id
func (e *LLMExecutor) Definitions() []Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Definition, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute runs one action. Unknown ids and provider failures yield Success false.
func (e *LLMExecutor) Execute(ctx context.Context, actionID string, pc activity.Context, params map[string]interface{}) Result {
	e.mu.RLock()
	def, ok := e.defs[actionID]
	e.mu.RUnlock()
	if !ok {
		return Failure(fmt.Sprintf("unknown action: %s", actionID))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: buildPrompt(def, pc, params)},
	}

	e.logger.Debug("Executing AI action", "action_id", actionID, "view", pc.CurrentView)

	text, err := e.client.ChatCompletion(ctx, messages)
	if err != nil {
		e.logger.Warn("AI action failed", "action_id", actionID, "error", err)
		return Failure(fmt.Sprintf("%s failed: %v", def.Name, err))
	}

	parsed, err := llm.ParseJSON[reply](text)
	if err != nil {
		// Free text is still a usable answer
		e.logger.Debug("AI action returned free text", "action_id", actionID)
		return Result{Success: true, Data: strings.TrimSpace(text)}
	}

	return Result{
		Success:     true,
		Data:        map[string]interface{}{"summary": parsed.Summary, "findings": parsed.Findings},
		Suggestions: parsed.Suggestions,
		NextActions: parsed.NextActions,
		Tags:        normalizeTags(parsed.Tags),
	}
}

func buildPrompt(def Definition, pc activity.Context, params map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n%s\n\n", def.Name, def.Instruction)
	fmt.Fprintf(&b, "CONTEXT:\n- View: %s\n", orDefault(pc.CurrentView, "unknown"))
	fmt.Fprintf(&b, "- Industry: %s\n", orDefault(pc.SelectedIndustry, "unspecified"))
	if len(pc.PageData) > 0 {
		if data, err := json.Marshal(pc.PageData); err == nil {
			fmt.Fprintf(&b, "- Page data: %s\n", data)
		}
	}
	if len(params) > 0 {
		if data, err := json.Marshal(params); err == nil {
			fmt.Fprintf(&b, "- Parameters: %s\n", data)
		}
	}
	b.WriteString(`
Respond with JSON:
{
  "summary": "<one paragraph>",
  "findings": ["<finding>"],
  "suggestions": ["<short follow-up suggestion>"],
  "nextActions": ["<action id or short instruction>"],
  "tags": ["data_quality" and/or "security" when the findings concern them]
}`)
	return b.String()
}

// normalizeTags keeps the tags the automation detectors understand
func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.ReplaceAll(t, " ", "_")
		if t == activity.TagDataQuality || t == activity.TagSecurity {
			out = append(out, t)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
