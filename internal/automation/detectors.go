package automation

import (
	"strings"

	"github.com/saaga0h/ea-advisor/internal/activity"
)

// Pattern detector names
const (
	PatternRepetitiveWorkflow = "repetitive_workflow"
	PatternDataQualityIssue   = "data_quality_issue"
	PatternSecurityConcern    = "security_concern"
)

const (
	recentWindow      = 10
	sequenceLength    = 3
	sequenceRepeatMin = 2
)

// DetectPattern runs the named detector over the recent activities.
// Unknown names never match.
func DetectPattern(pattern string, activities []activity.Activity) bool {
	recent := activity.Tail(activities, recentWindow)
	switch pattern {
	case PatternRepetitiveWorkflow:
		return hasRepeatedSequence(recent)
	case PatternDataQualityIssue:
		return anyTagged(recent, activity.TagDataQuality)
	case PatternSecurityConcern:
		return anyTagged(recent, activity.TagSecurity)
	}
	return false
}

// MatchActivity reports whether any recent activity's type or action equals pattern
func MatchActivity(pattern string, activities []activity.Activity) bool {
	if pattern == "" {
		return false
	}
	for _, a := range activity.Tail(activities, recentWindow) {
		if string(a.Type) == pattern || a.Details.Action == pattern {
			return true
		}
	}
	return false
}

func hasRepeatedSequence(activities []activity.Activity) bool {
	counts := make(map[string]int)
	for i := 0; i+sequenceLength <= len(activities); i++ {
		keys := make([]string, sequenceLength)
		for j := range keys {
			keys[j] = activities[i+j].Key()
		}
		seq := strings.Join(keys, "|")
		counts[seq]++
		if counts[seq] >= sequenceRepeatMin {
			return true
		}
	}
	return false
}

func anyTagged(activities []activity.Activity, tag string) bool {
	for _, a := range activities {
		if a.Details.HasTag(tag) {
			return true
		}
	}
	return false
}

// DetectOpportunities lists the patterns currently present in the log
func DetectOpportunities(activities []activity.Activity) []Opportunity {
	var out []Opportunity
	if DetectPattern(PatternRepetitiveWorkflow, activities) {
		out = append(out, Opportunity{
			Pattern:     PatternRepetitiveWorkflow,
			Description: "A sequence of steps keeps repeating and could run as one automation",
			ActionID:    "workflow-automation",
		})
	}
	if DetectPattern(PatternDataQualityIssue, activities) {
		out = append(out, Opportunity{
			Pattern:     PatternDataQualityIssue,
			Description: "Recent results flagged data quality problems",
			ActionID:    "data-quality-analysis",
		})
	}
	if DetectPattern(PatternSecurityConcern, activities) {
		out = append(out, Opportunity{
			Pattern:     PatternSecurityConcern,
			Description: "Recent results flagged security concerns",
			ActionID:    "security-review",
		})
	}
	return out
}
