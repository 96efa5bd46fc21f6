// Package metrics exposes advisor counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activitiesTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_activities_tracked_total",
			Help: "Total number of activities appended to the log",
		},
		[]string{"type"},
	)

	activityLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_activity_log_size",
			Help: "Current number of entries in the activity log",
		},
	)

	suggestionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_suggestions_generated_total",
			Help: "Total number of suggestions returned by generation passes",
		},
		[]string{"type"},
	)

	suggestionFeedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_suggestion_feedback_total",
			Help: "Suggestions marked shown or accepted",
		},
		[]string{"kind"},
	)

	automationExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_automation_executions_total",
			Help: "Automation rule executions by outcome",
		},
		[]string{"rule", "trigger", "outcome"},
	)

	commandsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_commands_processed_total",
			Help: "Natural-language commands by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_llm_request_duration_seconds",
			Help:    "Chat completion latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "outcome"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_http_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Collector records advisor metrics
type Collector struct {
	startTime time.Time
}

// NewCollector creates a metrics collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordActivity counts one tracked activity and the resulting log size
func (c *Collector) RecordActivity(activityType string, logSize int) {
	activitiesTracked.WithLabelValues(activityType).Inc()
	activityLogSize.Set(float64(logSize))
}

// RecordSuggestion counts one returned suggestion
func (c *Collector) RecordSuggestion(suggestionType string) {
	suggestionsGenerated.WithLabelValues(suggestionType).Inc()
}

// RecordFeedback counts a shown or accepted mark
func (c *Collector) RecordFeedback(kind string) {
	suggestionFeedback.WithLabelValues(kind).Inc()
}

// RecordExecution counts one automation rule execution. rule must come from
// a bounded set; callers bucket user-created rules under one label.
func (c *Collector) RecordExecution(rule, trigger string, success bool) {
	automationExecutions.WithLabelValues(rule, trigger, outcome(success)).Inc()
}

// RecordCommand counts one processed command
func (c *Collector) RecordCommand(route string, success bool) {
	commandsProcessed.WithLabelValues(route, outcome(success)).Inc()
}

// ObserveLLM matches llm.Observer
func (c *Collector) ObserveLLM(operation string, d time.Duration, err error) {
	llmDuration.WithLabelValues(operation, outcome(err == nil)).Observe(d.Seconds())
}

// Uptime returns the uptime duration
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware counts API requests by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
	})
}
