package automation

import "github.com/saaga0h/ea-advisor/internal/activity"

// ConditionFunc is a named predicate a condition trigger refers to
type ConditionFunc func(pc activity.Context, activities []activity.Activity) bool

const longSessionActivities = 50

// DefaultConditions returns the built-in predicates by name
func DefaultConditions() map[string]ConditionFunc {
	return map[string]ConditionFunc{
		"long_session": func(pc activity.Context, activities []activity.Activity) bool {
			return len(activities) >= longSessionActivities
		},
		"sparse_page_data": func(pc activity.Context, activities []activity.Activity) bool {
			return len(pc.PageData) > 0 && len(pc.PageData) < 3
		},
	}
}
