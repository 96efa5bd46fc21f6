package automation

// DailyInsightsRuleID is the only rule the scheduler fires
const DailyInsightsRuleID = "daily-insights"

// DefaultRules returns the rules seeded at startup
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:              DailyInsightsRuleID,
			Name:            "Daily Insights",
			Description:     "Generate architecture insights every morning at 9 AM",
			Trigger:         Trigger{Type: TriggerTime, Schedule: "0 9 * * *"},
			Action:          Action{Type: ActionAI, ActionID: "generate-insights"},
			Enabled:         false,
			Priority:        1,
			CooldownMinutes: 60,
		},
		{
			ID:              "repetitive-workflow-automation",
			Name:            "Repetitive Workflow Automation",
			Description:     "Offer to automate a sequence of steps the user keeps repeating",
			Trigger:         Trigger{Type: TriggerPattern, Pattern: PatternRepetitiveWorkflow},
			Action:          Action{Type: ActionAI, ActionID: "workflow-automation"},
			Enabled:         true,
			Priority:        2,
			CooldownMinutes: 60,
		},
		{
			ID:              "data-quality-check",
			Name:            "Data Quality Check",
			Description:     "Run a data quality analysis when results flag data quality problems",
			Trigger:         Trigger{Type: TriggerPattern, Pattern: PatternDataQualityIssue},
			Action:          Action{Type: ActionAI, ActionID: "data-quality-analysis"},
			Enabled:         true,
			Priority:        3,
			CooldownMinutes: 30,
		},
		{
			ID:              "security-review",
			Name:            "Security Review",
			Description:     "Run a security review when results flag security concerns",
			Trigger:         Trigger{Type: TriggerPattern, Pattern: PatternSecurityConcern},
			Action:          Action{Type: ActionAI, ActionID: "security-review"},
			Enabled:         true,
			Priority:        4,
			CooldownMinutes: 120,
		},
		{
			ID:              "auto-analyze-new-data",
			Name:            "Analyze New Data",
			Description:     "Analyze the current view whenever new data is created",
			Trigger:         Trigger{Type: TriggerActivity, Pattern: "creation"},
			Action:          Action{Type: ActionAI, ActionID: "analyze-current-view"},
			Enabled:         true,
			Priority:        5,
			CooldownMinutes: 15,
			MaxExecutions:   50,
		},
		{
			ID:              "session-summary",
			Name:            "Session Summary",
			Description:     "Remind the user to summarize a long working session",
			Trigger:         Trigger{Type: TriggerCondition, Condition: "long_session"},
			Action:          Action{Type: ActionNotification},
			Enabled:         true,
			Priority:        6,
			CooldownMinutes: 240,
		},
	}
}
