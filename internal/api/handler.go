// Package api exposes the advisor session over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saaga0h/ea-advisor/internal/activity"
	"github.com/saaga0h/ea-advisor/internal/advisor"
	"github.com/saaga0h/ea-advisor/internal/automation"
	"github.com/saaga0h/ea-advisor/internal/metrics"
	"github.com/saaga0h/ea-advisor/internal/suggestions"
	"github.com/saaga0h/ea-advisor/pkg/health"
)

// Handler handles HTTP requests for one advisor session
type Handler struct {
	service *advisor.Service
	logger  *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(service *advisor.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// NewRouter builds the full HTTP surface: API, health and metrics
func NewRouter(h *Handler, checker *health.Checker, collector *metrics.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(collector.Middleware)

	r.Get("/health", checker.HandlerFunc())
	r.Get("/health/detailed", checker.DetailedHandlerFunc())
	r.Handle("/metrics", promhttp.Handler())

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all advisor API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/activities", h.TrackActivity)
		r.Put("/context", h.UpdateContext)
		r.Get("/behavior", h.GetBehavior)

		r.Get("/suggestions", h.GetSuggestions)
		r.Post("/suggestions", h.GenerateSuggestions)
		r.Get("/suggestions/history", h.GetSuggestionHistory)
		r.Delete("/suggestions/history", h.ClearSuggestionHistory)
		r.Post("/suggestions/{id}/shown", h.feedback(advisor.FeedbackShown))
		r.Post("/suggestions/{id}/accepted", h.feedback(advisor.FeedbackAccepted))

		r.Get("/automation/rules", h.GetRules)
		r.Get("/automation/rules/{id}/executions", h.GetExecutions)
		r.Post("/automation/rules/{id}/run", h.RunRule)
		r.Post("/automation/enable", h.SetAutomation(true))
		r.Post("/automation/disable", h.SetAutomation(false))

		r.Post("/commands", h.ProcessCommand)
		r.Get("/commands", h.GetCommandHistory)
	})
}

// TrackActivity appends an activity to the session log
func (h *Handler) TrackActivity(w http.ResponseWriter, r *http.Request) {
	var a activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	tracked, err := h.service.TrackActivity(r.Context(), a)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, tracked)
}

// UpdateContext changes view, industry, page data or tracking
func (h *Handler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var u advisor.ContextUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	st := h.service.UpdateContext(r.Context(), u)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"context":     st.Context(),
		"tracking":    st.TrackingEnabled,
		"viewHistory": st.ViewHistory,
		"activities":  st.Activities.Len(),
	})
}

// GetBehavior returns the latest behavior summary
func (h *Handler) GetBehavior(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.State().UserBehavior)
}

// GetSuggestions returns the suggestions of the last pass without
// generating; cooldowns and history are untouched
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	h.respondSuggestions(w, h.service.State().Suggestions)
}

// GenerateSuggestions runs a generation pass for the current context
func (h *Handler) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	h.respondSuggestions(w, h.service.GenerateSuggestions(r.Context()))
}

func (h *Handler) respondSuggestions(w http.ResponseWriter, list []suggestions.SmartSuggestion) {
	if list == nil {
		list = []suggestions.SmartSuggestion{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": list,
		"count":       len(list),
	})
}

// GetSuggestionHistory returns every stored suggestion, best first
func (h *Handler) GetSuggestionHistory(w http.ResponseWriter, r *http.Request) {
	history := h.service.Suggestions().History()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": history,
		"count":       len(history),
	})
}

// ClearSuggestionHistory wipes history and cooldowns
func (h *Handler) ClearSuggestionHistory(w http.ResponseWriter, r *http.Request) {
	h.service.ClearSuggestionHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) feedback(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.service.Feedback(r.Context(), id, kind); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, suggestions.ErrSuggestionNotFound) {
				status = http.StatusNotFound
			}
			h.respondError(w, status, err)
			return
		}
		s, _ := h.service.Suggestions().Get(id)
		h.respondJSON(w, http.StatusOK, s)
	}
}

// GetRules lists automation rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	engine := h.service.Automation()
	rules := engine.Rules()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules":   rules,
		"count":   len(rules),
		"enabled": engine.Enabled(),
	})
}

// GetExecutions returns the execution timestamps of one rule
func (h *Handler) GetExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.service.Automation().ExecutionHistory(id)
	if err != nil {
		h.respondError(w, statusFor(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ruleId":     id,
		"executions": history,
	})
}

// RunRule executes a rule on demand
func (h *Handler) RunRule(w http.ResponseWriter, r *http.Request) {
	exe, err := h.service.ExecuteRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, statusFor(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, exe)
}

// SetAutomation toggles the global automation flag
func (h *Handler) SetAutomation(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine := h.service.Automation()
		if enabled {
			engine.Enable()
		} else {
			engine.Disable()
		}
		h.logger.Info("Automation toggled", "enabled", enabled)
		h.respondJSON(w, http.StatusOK, map[string]bool{"enabled": engine.Enabled()})
	}
}

// ProcessCommand handles a natural-language command
func (h *Handler) ProcessCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.service.ProcessCommand(r.Context(), req.Command))
}

// GetCommandHistory returns processed commands
func (h *Handler) GetCommandHistory(w http.ResponseWriter, r *http.Request) {
	history := h.service.Automation().CommandHistory()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"commands": history,
		"count":    len(history),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, automation.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, automation.ErrRuleNotReady):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, err error) {
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
