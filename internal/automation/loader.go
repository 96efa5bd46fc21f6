package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk shape of extra automation rules
type RulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads rules from a YAML file and validates them
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates YAML rules
func ParseRules(data []byte) ([]Rule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	seen := make(map[string]bool)
	for i, r := range file.Rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rule %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
	}
	return file.Rules, nil
}

func validateRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch r.Trigger.Type {
	case TriggerTime, TriggerManual:
	case TriggerActivity, TriggerPattern:
		if r.Trigger.Pattern == "" {
			return fmt.Errorf("%s trigger requires a pattern", r.Trigger.Type)
		}
	case TriggerCondition:
		if r.Trigger.Condition == "" {
			return fmt.Errorf("condition trigger requires a condition name")
		}
	default:
		return fmt.Errorf("unknown trigger type %q", r.Trigger.Type)
	}
	switch r.Action.Type {
	case ActionAI:
		if r.Action.ActionID == "" {
			return fmt.Errorf("ai_action requires an actionId")
		}
	case ActionCommand:
		if r.Action.Command == "" {
			return fmt.Errorf("command action requires a command")
		}
	case ActionNotification, ActionWorkflow:
	default:
		return fmt.Errorf("unknown action type %q", r.Action.Type)
	}
	if r.CooldownMinutes < 0 || r.MaxExecutions < 0 {
		return fmt.Errorf("cooldownMinutes and maxExecutions must not be negative")
	}
	return nil
}
