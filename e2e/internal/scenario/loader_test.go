package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledScenario(t *testing.T) {
	s, err := LoadScenario("../../scenarios/first-visit.yaml")
	require.NoError(t, err)

	assert.Equal(t, "e2e-first-visit", s.Session)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, 6, s.Steps[1].Count())
	assert.Equal(t, 1, s.Steps[0].Count())
	assert.Equal(t, LatestSuggestion, s.Steps[3].Payload["id"])
	assert.Equal(t, "state:ai-page-context", s.Expectations["state"][0].Target())
}

const base = `
name: n
description: d
steps:
  - time: 0
    kind: command
    payload: {command: "list"}
    description: c
expectations:
  out:
    - time: 1
      topic: command/result
      payload: {route: automation}
`

func TestLoadScenarioDefaultsSession(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(base))
	require.NoError(t, err)
	assert.Equal(t, "e2e", s.Session)
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		s, err := LoadScenarioFromBytes([]byte(base))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }},
		{"no steps", func(s *Scenario) { s.Steps = nil }},
		{"unknown kind", func(s *Scenario) { s.Steps[0].Kind = "sensor" }},
		{"empty command", func(s *Scenario) { s.Steps[0].Payload = map[string]interface{}{} }},
		{"activity without type", func(s *Scenario) {
			s.Steps[0].Kind = StepActivity
			s.Steps[0].Payload = map[string]interface{}{"details": map[string]interface{}{}}
		}},
		{"bad feedback kind", func(s *Scenario) {
			s.Steps[0].Kind = StepFeedback
			s.Steps[0].Payload = map[string]interface{}{"id": "x", "kind": "liked"}
		}},
		{"no expectations", func(s *Scenario) { s.Expectations = nil }},
		{"topic without payload", func(s *Scenario) { s.Expectations["out"][0].Payload = nil }},
		{"topic and state", func(s *Scenario) { s.Expectations["out"][0].StateKey = "ai-page-context" }},
		{"bad virtual start", func(s *Scenario) { s.TestMode = &TestModeConfig{VirtualStart: "tomorrow", TimeScale: 1} }},
		{"zero time scale", func(s *Scenario) { s.TestMode = &TestModeConfig{VirtualStart: "2026-03-02T09:00:00Z"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			assert.Error(t, ValidateScenario(s))
		})
	}
}
