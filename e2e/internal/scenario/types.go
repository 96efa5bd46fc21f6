package scenario

import "time"

// Step kinds; each publishes to ea/{session}/{kind}
const (
	StepActivity = "activity"
	StepContext  = "context"
	StepCommand  = "command"
	StepFeedback = "feedback"
)

// LatestSuggestion in a feedback step id is replaced with the id of the
// top suggestion most recently published for the session
const LatestSuggestion = "$latest"

// Scenario is a scripted dashboard session replayed against a running advisor agent
type Scenario struct {
	Name         string                   `yaml:"name"`
	Description  string                   `yaml:"description"`
	Session      string                   `yaml:"session"`
	TestMode     *TestModeConfig          `yaml:"test_mode,omitempty"`
	Steps        []Step                   `yaml:"steps"`
	Wait         []WaitPeriod             `yaml:"wait"`
	Expectations map[string][]Expectation `yaml:"expectations"`
}

// TestModeConfig switches the agent to a scaled virtual clock
type TestModeConfig struct {
	VirtualStart string `yaml:"virtual_start"`
	TimeScale    int    `yaml:"time_scale"`
}

// Step is one message sent to the agent
type Step struct {
	Time        int                    `yaml:"time"` // Seconds from start
	Kind        string                 `yaml:"kind"`
	Repeat      int                    `yaml:"repeat,omitempty"` // Publish the payload this many times (default 1)
	Payload     map[string]interface{} `yaml:"payload"`
	Description string                 `yaml:"description"`
}

// Count returns how many times the step is published
func (s Step) Count() int {
	if s.Repeat < 1 {
		return 1
	}
	return s.Repeat
}

// WaitPeriod represents a pause in the scenario
type WaitPeriod struct {
	Time        int    `yaml:"time"` // Seconds from start
	Description string `yaml:"description"`
}

// Expectation is checked against the latest message on a session topic,
// or against a persisted state document
type Expectation struct {
	Time    int                    `yaml:"time"`              // Seconds from start
	Topic   string                 `yaml:"topic,omitempty"`   // Suffix under ea/{session}/, e.g. "suggestions"
	Payload map[string]interface{} `yaml:"payload,omitempty"` // Supports matchers, see checker.MatchesExpectation

	StateKey string      `yaml:"state_key,omitempty"` // e.g. "ai-suggestions-history"
	State    interface{} `yaml:"state,omitempty"`
}

// Target describes what an expectation inspects
func (e Expectation) Target() string {
	if e.StateKey != "" {
		return "state:" + e.StateKey
	}
	return e.Topic
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario           `json:"scenario"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Passed       bool                `json:"passed"`
	PassedCount  int                 `json:"passed_count"`
	FailedCount  int                 `json:"failed_count"`
	Expectations []ExpectationResult `json:"expectations"`
}

// ExpectationResult represents the result of checking a single expectation
type ExpectationResult struct {
	Group       string      `json:"group"`
	Expectation Expectation `json:"expectation"`
	Passed      bool        `json:"passed"`
	Reason      string      `json:"reason,omitempty"`
	Actual      interface{} `json:"actual,omitempty"`
}
