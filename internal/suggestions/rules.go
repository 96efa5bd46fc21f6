package suggestions

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/behavior"
)

const (
	repetitionWindow    = 10
	repetitionThreshold = 3
	repetitionHigh      = 5
	workflowMinLog      = 20
	peakTimeMinLog      = 10
	maxAdvancedActions  = 2
	minAnalysisCount    = 2
	completenessMinKeys = 3
)

// DefaultRules returns the built-in rule set in evaluation order
func DefaultRules(catalog *Catalog) []Rule {
	return []Rule{
		{
			ID:              "first-time-view",
			Priority:        1,
			CooldownMinutes: 60,
			Condition: func(in Input) bool {
				return in.Context.CurrentView != "" && !in.Behavior.IsFrequentView(in.Context.CurrentView)
			},
			Generator: func(in Input) []SmartSuggestion {
				title := catalog.Title(in.Context.CurrentView)
				return []SmartSuggestion{newSuggestion(in, AnyLevel, SmartSuggestion{
					Type:           TypeLearning,
					Title:          "Welcome to " + title,
					Description:    fmt.Sprintf("New to %s? Take a quick tour of what this view shows and the AI actions it offers.", title),
					Priority:       PriorityHigh,
					Confidence:     0.9,
					RelevanceScore: 1.0,
					Category:       "onboarding",
					Triggers:       []string{"first_visit"},
				})}
			},
		},
		{
			ID:              "repetitive-actions",
			Priority:        2,
			CooldownMinutes: 30,
			Condition: func(in Input) bool {
				return len(repeatedActions(in.Activities)) > 0
			},
			Generator: func(in Input) []SmartSuggestion {
				var out []SmartSuggestion
				for _, r := range repeatedActions(in.Activities) {
					priority := PriorityMedium
					if r.count >= repetitionHigh {
						priority = PriorityHigh
					}
					out = append(out, newSuggestion(in, string(in.Behavior.ExpertiseLevel), SmartSuggestion{
						Type:           TypeAutomation,
						Title:          fmt.Sprintf("Automate %s", humanize(r.key)),
						Description:    fmt.Sprintf("You performed %s %d times recently. Create an automation rule to run it for you.", humanize(r.key), r.count),
						Priority:       priority,
						Confidence:     math.Min(float64(r.count)/repetitionHigh, 1),
						RelevanceScore: 0.8,
						Category:       "automation",
						Triggers:       []string{"repetitive_action"},
						Metadata:       map[string]interface{}{"actionKey": r.key, "count": r.count},
					}))
				}
				return out
			},
		},
		{
			ID:              "workflow-optimization",
			Priority:        3,
			CooldownMinutes: 60,
			Condition: func(in Input) bool {
				return len(in.Behavior.WorkPatterns.CommonWorkflows) >= 1 && len(in.Activities) > workflowMinLog
			},
			Generator: func(in Input) []SmartSuggestion {
				var out []SmartSuggestion
				for _, wf := range in.Behavior.WorkPatterns.CommonWorkflows {
					out = append(out, newSuggestion(in, AnyLevel, SmartSuggestion{
						Type:           TypeWorkflow,
						Title:          "Optimize workflow: " + wf,
						Description:    "You repeat this sequence often. Save it as a workflow shortcut.",
						Priority:       PriorityMedium,
						Confidence:     0.7,
						RelevanceScore: 0.75,
						Category:       "workflow",
						Triggers:       []string{"common_workflow"},
						Metadata:       map[string]interface{}{"workflow": wf},
					}))
				}
				return out
			},
		},
		{
			ID:              "advanced-actions",
			Priority:        4,
			CooldownMinutes: 15,
			Condition: func(in Input) bool {
				return in.Behavior.ExpertiseLevel == behavior.Advanced && in.Behavior.IsFrequentView(in.Context.CurrentView)
			},
			Generator: func(in Input) []SmartSuggestion {
				var out []SmartSuggestion
				for _, a := range head(catalog.Actions(in.Context.CurrentView, KindAnalyze, KindGenerate), maxAdvancedActions) {
					s := newSuggestion(in, string(behavior.Advanced), SmartSuggestion{
						Type:           TypeAction,
						Title:          a.Name,
						Description:    a.Description,
						Priority:       PriorityMedium,
						Confidence:     0.8,
						RelevanceScore: 0.85,
						Category:       "power_user",
						Triggers:       []string{"advanced_user", "frequent_view"},
					})
					s.ActionID = a.ID
					out = append(out, s)
				}
				return out
			},
		},
		{
			ID:              "industry-best-practices",
			Priority:        5,
			CooldownMinutes: 120,
			Condition: func(in Input) bool {
				return countType(in.Activities, activity.TypeAnalysis) < minAnalysisCount &&
					in.Behavior.ExpertiseLevel != behavior.Beginner
			},
			Generator: func(in Input) []SmartSuggestion {
				industry := in.Context.SelectedIndustry
				if industry == "" {
					industry = "industry"
				}
				return []SmartSuggestion{newSuggestion(in, AnyLevel, SmartSuggestion{
					Type:           TypeInsight,
					Title:          fmt.Sprintf("Explore %s architecture best practices", industry),
					Description:    "Compare your architecture against reference patterns for your industry.",
					Priority:       PriorityMedium,
					Confidence:     0.75,
					RelevanceScore: 0.7,
					Category:       "best_practices",
					Triggers:       []string{"low_analysis_usage"},
				})}
			},
		},
		{
			ID:              "data-completeness",
			Priority:        6,
			CooldownMinutes: 30,
			Condition: func(in Input) bool {
				n := len(in.Context.PageData)
				return n > 0 && n < completenessMinKeys
			},
			Generator: func(in Input) []SmartSuggestion {
				return []SmartSuggestion{newSuggestion(in, AnyLevel, SmartSuggestion{
					Type:           TypeOptimization,
					Title:          "Complete your data for better insights",
					Description:    "This view has little data loaded. Adding more gives the AI analysis more to work with.",
					Priority:       PriorityLow,
					Confidence:     0.6,
					RelevanceScore: 0.6,
					Category:       "data_quality",
					Triggers:       []string{"sparse_page_data"},
					Metadata:       map[string]interface{}{"fields": len(in.Context.PageData)},
				})}
			},
		},
		{
			ID:              "peak-time",
			Priority:        7,
			CooldownMinutes: 120,
			Condition: func(in Input) bool {
				return in.Behavior.IsPeakHour(in.Now.Hour()) && len(in.Activities) > peakTimeMinLog
			},
			Generator: func(in Input) []SmartSuggestion {
				s := newSuggestion(in, AnyLevel, SmartSuggestion{
					Type:           TypeOptimization,
					Title:          "Make the most of your peak hours",
					Description:    "This is one of your most active hours. Queue your heaviest analysis now.",
					Priority:       PriorityLow,
					Confidence:     0.65,
					RelevanceScore: 0.6,
					Category:       "productivity",
					Triggers:       []string{"peak_hour"},
				})
				expires := in.Now.Truncate(time.Hour).Add(time.Hour)
				s.ExpiresAt = &expires
				return []SmartSuggestion{s}
			},
		},
		{
			ID:              "integration-opportunity",
			Priority:        8,
			CooldownMinutes: 240,
			Condition: func(in Input) bool {
				for _, v := range in.Behavior.FrequentViews {
					if IsIntegrationView(v) {
						return false
					}
				}
				return in.Behavior.ExpertiseLevel != behavior.Beginner
			},
			Generator: func(in Input) []SmartSuggestion {
				return []SmartSuggestion{newSuggestion(in, string(behavior.Intermediate), SmartSuggestion{
					Type:           TypeInsight,
					Title:          "Discover integration opportunities",
					Description:    "You have not looked at system integrations yet. The integration hub maps interfaces between your systems.",
					Priority:       PriorityMedium,
					Confidence:     0.7,
					RelevanceScore: 0.65,
					Category:       "integration",
					Triggers:       []string{"no_integration_views"},
				})}
			},
		},
	}
}

func newSuggestion(in Input, level string, s SmartSuggestion) SmartSuggestion {
	s.ID = uuid.NewString()
	s.Context = Context{
		View:      in.Context.CurrentView,
		Industry:  in.Context.SelectedIndustry,
		UserLevel: level,
	}
	return s
}

type repetition struct {
	key   string
	count int
}

// repeatedActions returns the action keys seen at least three times in the
// last ten activities, in first-encounter order
func repeatedActions(activities []activity.Activity) []repetition {
	counts := make(map[string]int)
	var order []string
	for _, a := range activity.Tail(activities, repetitionWindow) {
		k := a.Key()
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var out []repetition
	for _, k := range order {
		if counts[k] >= repetitionThreshold {
			out = append(out, repetition{key: k, count: counts[k]})
		}
	}
	return out
}

func countType(activities []activity.Activity, t activity.Type) int {
	n := 0
	for _, a := range activities {
		if a.Type == t {
			n++
		}
	}
	return n
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// humanize turns an action key like analysis_click into "analysis click"
func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
