package scenario

import (
	"fmt"
	"time"
)

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("scenario description is required")
	}

	if err := validateSteps(s.Steps); err != nil {
		return fmt.Errorf("steps validation failed: %w", err)
	}

	for i, wait := range s.Wait {
		if wait.Time < 0 {
			return fmt.Errorf("wait period %d: time cannot be negative", i)
		}
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	if err := validateTestMode(s.TestMode); err != nil {
		return fmt.Errorf("test_mode validation failed: %w", err)
	}

	return nil
}

func validateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for i, step := range steps {
		if step.Time < 0 {
			return fmt.Errorf("step %d: time cannot be negative", i)
		}
		if step.Description == "" {
			return fmt.Errorf("step %d: description is required", i)
		}

		switch step.Kind {
		case StepActivity:
			if _, ok := step.Payload["type"]; !ok {
				return fmt.Errorf("step %d: activity payload requires 'type'", i)
			}
		case StepContext:
			if len(step.Payload) == 0 {
				return fmt.Errorf("step %d: context payload is empty", i)
			}
		case StepCommand:
			if cmd, _ := step.Payload["command"].(string); cmd == "" {
				return fmt.Errorf("step %d: command payload requires 'command'", i)
			}
		case StepFeedback:
			if _, ok := step.Payload["id"]; !ok {
				return fmt.Errorf("step %d: feedback payload requires 'id'", i)
			}
			if kind, _ := step.Payload["kind"].(string); kind != "shown" && kind != "accepted" {
				return fmt.Errorf("step %d: feedback kind must be shown or accepted", i)
			}
		default:
			return fmt.Errorf("step %d: unknown kind %q", i, step.Kind)
		}
	}

	return nil
}

func validateExpectations(expectations map[string][]Expectation) error {
	if len(expectations) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for group, exps := range expectations {
		if group == "" {
			return fmt.Errorf("expectation group name cannot be empty")
		}

		for i, exp := range exps {
			if exp.Time < 0 {
				return fmt.Errorf("group %s, expectation %d: time cannot be negative", group, i)
			}

			switch {
			case exp.Topic != "" && exp.StateKey != "":
				return fmt.Errorf("group %s, expectation %d: topic and state_key are exclusive", group, i)
			case exp.Topic != "" && len(exp.Payload) == 0:
				return fmt.Errorf("group %s, expectation %d: topic expectations require payload", group, i)
			case exp.StateKey != "" && exp.State == nil:
				return fmt.Errorf("group %s, expectation %d: state is required when state_key is specified", group, i)
			case exp.Topic == "" && exp.StateKey == "":
				return fmt.Errorf("group %s, expectation %d: either topic or state_key is required", group, i)
			}
		}
	}

	return nil
}

func validateTestMode(tm *TestModeConfig) error {
	if tm == nil {
		return nil
	}

	if _, err := time.Parse(time.RFC3339, tm.VirtualStart); err != nil {
		return fmt.Errorf("virtual_start must be valid ISO 8601 timestamp: %w", err)
	}

	if tm.TimeScale < 1 {
		return fmt.Errorf("time_scale must be >= 1 (got %d)", tm.TimeScale)
	}

	return nil
}
