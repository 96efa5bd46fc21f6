// Package behavior reduces the activity log into a behavior summary.
package behavior

import (
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/ea-advisor/internal/activity"
)

// ExpertiseLevel is the derived user proficiency
type ExpertiseLevel string

const (
	Beginner     ExpertiseLevel = "beginner"
	Intermediate ExpertiseLevel = "intermediate"
	Advanced     ExpertiseLevel = "advanced"
)

const (
	minActivities  = 5
	topViews       = 5
	topActions     = 5
	topPeakHours   = 3
	topWorkflows   = 3
	topFocusAreas  = 3
	workflowWindow = 3
	workflowSep    = " -> "
)

// WorkPatterns summarizes when and how the user works
type WorkPatterns struct {
	PeakHours              []int    `json:"peakHours"`
	AverageSessionDuration float64  `json:"averageSessionDuration"`
	CommonWorkflows        []string `json:"commonWorkflows"`
}

// UserBehavior is the derived aggregate. It is recomputed from scratch on every pass.
type UserBehavior struct {
	FrequentViews    []string       `json:"frequentViews"`
	PreferredActions []string       `json:"preferredActions"`
	WorkPatterns     WorkPatterns   `json:"workPatterns"`
	ExpertiseLevel   ExpertiseLevel `json:"expertiseLevel"`
	FocusAreas       []string       `json:"focusAreas"`
	AnalyzedAt       time.Time      `json:"analyzedAt,omitempty"`
}

// Default is the summary used before the first successful analysis
func Default() UserBehavior {
	return UserBehavior{
		FrequentViews:    []string{},
		PreferredActions: []string{},
		WorkPatterns: WorkPatterns{
			PeakHours:       []int{},
			CommonWorkflows: []string{},
		},
		ExpertiseLevel: Beginner,
		FocusAreas:     []string{},
	}
}

// IsFrequentView reports whether view is among the frequent views
func (b UserBehavior) IsFrequentView(view string) bool {
	return contains(b.FrequentViews, view)
}

// IsPeakHour reports whether hour is one of the peak hours
func (b UserBehavior) IsPeakHour(hour int) bool {
	for _, h := range b.WorkPatterns.PeakHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Analyze recomputes the behavior summary from the activity log.
// With fewer than five activities prev is returned unchanged and ok is false.
func Analyze(prev UserBehavior, activities []activity.Activity, currentView string, sessionStart, now time.Time) (UserBehavior, bool) {
	if len(activities) < minActivities {
		return prev, false
	}

	views := newCounter[string]()
	actions := newCounter[string]()
	hours := newCounter[int]()
	complexCount := 0

	for _, a := range activities {
		view := a.Details.View
		if view == "" {
			view = currentView
		}
		views.add(view)

		action := a.Details.Action
		if action == "" {
			action = string(a.Type)
		}
		actions.add(action)

		hours.add(a.Timestamp.Hour())

		if a.Type.Complex() {
			complexCount++
		}
	}

	frequentViews := views.top(topViews)

	return UserBehavior{
		FrequentViews:    frequentViews,
		PreferredActions: actions.top(topActions),
		WorkPatterns: WorkPatterns{
			PeakHours:              hours.top(topPeakHours),
			AverageSessionDuration: now.Sub(sessionStart).Minutes(),
			CommonWorkflows:        DetectWorkflows(activities),
		},
		ExpertiseLevel: ClassifyExpertise(views.distinct(), complexCount),
		FocusAreas:     head(frequentViews, topFocusAreas),
		AnalyzedAt:     now,
	}, true
}

// ClassifyExpertise maps distinct-view and complex-action counts to a level.
// Both thresholds are strict.
func ClassifyExpertise(distinctViews, complexActions int) ExpertiseLevel {
	switch {
	case distinctViews > 5 && complexActions > 10:
		return Advanced
	case distinctViews > 3 && complexActions > 5:
		return Intermediate
	default:
		return Beginner
	}
}

// DetectWorkflows counts every window of three consecutive labels and keeps
// the sequences seen more than once, most frequent first (at most three).
func DetectWorkflows(activities []activity.Activity) []string {
	sequences := newCounter[string]()
	for i := 0; i+workflowWindow <= len(activities); i++ {
		labels := make([]string, workflowWindow)
		for j := 0; j < workflowWindow; j++ {
			labels[j] = activities[i+j].Label()
		}
		sequences.add(strings.Join(labels, workflowSep))
	}

	repeated := newCounter[string]()
	for _, seq := range sequences.order {
		if sequences.counts[seq] > 1 {
			repeated.order = append(repeated.order, seq)
			repeated.counts[seq] = sequences.counts[seq]
		}
	}
	return repeated.top(topWorkflows)
}

// counter tallies occurrences and remembers first-encounter order for stable ties
type counter[K comparable] struct {
	counts map[K]int
	order  []K
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(k K) {
	if _, seen := c.counts[k]; !seen {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

func (c *counter[K]) distinct() int {
	return len(c.order)
}

func (c *counter[K]) top(n int) []K {
	keys := make([]K, len(c.order))
	copy(keys, c.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	return head(keys, n)
}

func head[K any](s []K, n int) []K {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]K, len(s))
	copy(out, s)
	return out
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
