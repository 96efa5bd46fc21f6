package activity

// Context is the page context snapshot the engines evaluate against
type Context struct {
	CurrentView      string                 `json:"currentView"`
	SelectedIndustry string                 `json:"selectedIndustry,omitempty"`
	PageData         map[string]interface{} `json:"pageData,omitempty"`
}

// Tail returns the last n entries of activities (all if fewer)
func Tail(activities []Activity, n int) []Activity {
	if n < 0 {
		n = 0
	}
	if len(activities) <= n {
		return activities
	}
	return activities[len(activities)-n:]
}
