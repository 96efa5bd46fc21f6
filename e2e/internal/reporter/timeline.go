package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
)

// TimelineEvent represents a single event in the timeline
type TimelineEvent struct {
	Elapsed     float64
	Group       string
	Description string
	Success     bool // only meaningful when IsCheck
	IsCheck     bool
}

const rule = "============================================================\n"

// GenerateTimeline renders a human-readable report of a run
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Scenario: %s\n", result.Scenario.Name)
	fmt.Fprintf(&sb, "Session:  %s\n", result.Scenario.Session)
	fmt.Fprintf(&sb, "Duration: %s\n", formatDuration(result.EndTime.Sub(result.StartTime)))
	sb.WriteString(rule)

	for _, e := range events {
		mark := "->"
		if e.IsCheck {
			mark = "ok"
			if !e.Success {
				mark = "!!"
			}
		}
		fmt.Fprintf(&sb, "[%7.2fs] %s %-12s %s\n", e.Elapsed, mark, e.Group, e.Description)
	}

	byGroup := make(map[string][]scenario.ExpectationResult)
	var groups []string
	for _, r := range result.Expectations {
		if _, seen := byGroup[r.Group]; !seen {
			groups = append(groups, r.Group)
		}
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}
	sort.Strings(groups)

	sb.WriteString("\nExpectations\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "  %s\n", g)
		for _, r := range byGroup[g] {
			if r.Passed {
				fmt.Fprintf(&sb, "    PASS %s\n", r.Expectation.Target())
			} else {
				fmt.Fprintf(&sb, "    FAIL %s: %s\n", r.Expectation.Target(), r.Reason)
			}
		}
	}

	status := "PASSED"
	if result.FailedCount > 0 {
		status = fmt.Sprintf("FAILED (%d)", result.FailedCount)
	}
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Passed: %d  Failed: %d  Status: %s\n", result.PassedCount, result.FailedCount, status)
	sb.WriteString(rule)

	return sb.String()
}

// SaveTimeline writes a timeline report, creating directories as needed
func SaveTimeline(content, filename string) error {
	return writeFile(filename, []byte(content))
}

// SaveSummary writes the JSON result of a run
func SaveSummary(result *scenario.TestResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return writeFile(filename, data)
}

func writeFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dm %.1fs", minutes, (d - time.Duration(minutes)*time.Minute).Seconds())
}
