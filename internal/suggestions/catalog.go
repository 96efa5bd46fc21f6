package suggestions

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ActionKind groups catalog actions
type ActionKind string

const (
	KindAnalyze  ActionKind = "analyze"
	KindGenerate ActionKind = "generate"
)

// CatalogAction is an AI action offered on a view
type CatalogAction struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Kind        ActionKind `json:"kind" yaml:"kind"`
}

// View describes one dashboard view
type View struct {
	ID      string          `json:"id" yaml:"id"`
	Title   string          `json:"title" yaml:"title"`
	Actions []CatalogAction `json:"actions" yaml:"actions"`
}

// Catalog maps view ids to their display titles and available actions
type Catalog struct {
	views map[string]View
}

// NewCatalog builds a catalog from views
func NewCatalog(views ...View) *Catalog {
	c := &Catalog{views: make(map[string]View, len(views))}
	for _, v := range views {
		c.views[v.ID] = v
	}
	return c
}

// DefaultCatalog returns the views of the architecture dashboard
func DefaultCatalog() *Catalog {
	return NewCatalog(
		View{ID: "target-state", Title: "Target State Architecture", Actions: []CatalogAction{
			{ID: "analyze-architecture-gaps", Name: "Analyze Architecture Gaps", Description: "Compare target state against the current landscape", Kind: KindAnalyze},
			{ID: "generate-transition-plan", Name: "Generate Transition Plan", Description: "Draft the steps from current to target state", Kind: KindGenerate},
			{ID: "generate-architecture-diagram", Name: "Generate Architecture Diagram", Description: "Produce a diagram of the target architecture", Kind: KindGenerate},
		}},
		View{ID: "current-state", Title: "Current State Architecture", Actions: []CatalogAction{
			{ID: "analyze-technical-debt", Name: "Analyze Technical Debt", Description: "Find systems carrying the most debt", Kind: KindAnalyze},
			{ID: "generate-system-inventory", Name: "Generate System Inventory", Description: "Summarize the current application inventory", Kind: KindGenerate},
		}},
		View{ID: "capability-heatmap", Title: "Capability Heatmap", Actions: []CatalogAction{
			{ID: "analyze-capability-maturity", Name: "Analyze Capability Maturity", Description: "Highlight weak capabilities", Kind: KindAnalyze},
			{ID: "generate-investment-priorities", Name: "Generate Investment Priorities", Description: "Rank capabilities for investment", Kind: KindGenerate},
		}},
		View{ID: "business-capabilities", Title: "Business Capabilities", Actions: []CatalogAction{
			{ID: "analyze-capability-coverage", Name: "Analyze Capability Coverage", Description: "Check which capabilities lack supporting systems", Kind: KindAnalyze},
			{ID: "generate-capability-map", Name: "Generate Capability Map", Description: "Draft a capability map for the industry", Kind: KindGenerate},
		}},
		View{ID: "project-tracking", Title: "Project Tracking", Actions: []CatalogAction{
			{ID: "analyze-project-risks", Name: "Analyze Project Risks", Description: "Spot projects at risk of slipping", Kind: KindAnalyze},
			{ID: "generate-status-report", Name: "Generate Status Report", Description: "Summarize progress across projects", Kind: KindGenerate},
		}},
		View{ID: "ai-assistant", Title: "AI Assistant"},
		View{ID: "integration-hub", Title: "Integration Hub", Actions: []CatalogAction{
			{ID: "analyze-integration-points", Name: "Analyze Integration Points", Description: "Map interfaces between systems", Kind: KindAnalyze},
		}},
		View{ID: "roadmap", Title: "Roadmap", Actions: []CatalogAction{
			{ID: "analyze-roadmap-dependencies", Name: "Analyze Roadmap Dependencies", Description: "Find blocking dependencies between initiatives", Kind: KindAnalyze},
			{ID: "generate-roadmap", Name: "Generate Roadmap", Description: "Draft a phased roadmap", Kind: KindGenerate},
		}},
	)
}

// Title returns the display title, title-casing the id for unknown views
func (c *Catalog) Title(view string) string {
	if v, ok := c.views[view]; ok && v.Title != "" {
		return v.Title
	}
	words := strings.FieldsFunc(view, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Actions returns the view's actions of the given kinds, in catalog order
func (c *Catalog) Actions(view string, kinds ...ActionKind) []CatalogAction {
	v, ok := c.views[view]
	if !ok {
		return nil
	}
	var out []CatalogAction
	for _, a := range v.Actions {
		for _, k := range kinds {
			if a.Kind == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Action looks up an action by id across all views
func (c *Catalog) Action(id string) (CatalogAction, bool) {
	for _, v := range c.views {
		for _, a := range v.Actions {
			if a.ID == id {
				return a, true
			}
		}
	}
	return CatalogAction{}, false
}

// AllActions returns every action of every view, ordered by view id
func (c *Catalog) AllActions() []CatalogAction {
	ids := make([]string, 0, len(c.views))
	for id := range c.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []CatalogAction
	for _, id := range ids {
		out = append(out, c.views[id].Actions...)
	}
	return out
}

// IsIntegrationView reports whether a view is integration-related
func IsIntegrationView(view string) bool {
	return strings.Contains(strings.ToLower(view), "integration")
}
