package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/ea-advisor/pkg/mqtt"
	"github.com/saaga0h/ea-advisor/pkg/postgres"
	"github.com/saaga0h/ea-advisor/pkg/redis"
)

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusDisabled     = "disabled"
	pingTimeout        = 2 * time.Second
)

// Checker provides health check functionality for the advisor.
// Nil dependencies are reported as disabled and do not degrade the status.
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	MQTT     string `json:"mqtt"`
	Redis    string `json:"redis"`
	Postgres string `json:"postgres"`
}

// HandlerFunc returns 200 while the process is alive, without checking dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that pings every configured dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := h.Check(r.Context())

		status := "healthy"
		statusCode := http.StatusOK
		for _, s := range []string{services.MQTT, services.Redis, services.Postgres} {
			if s == statusDisconnected {
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

// Check reports the state of each dependency
func (h *Checker) Check(ctx context.Context) *Services {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	services := &Services{MQTT: statusDisabled, Redis: statusDisabled, Postgres: statusDisabled}

	if h.mqtt != nil {
		services.MQTT = statusDisconnected
		if h.mqtt.IsConnected() {
			services.MQTT = statusConnected
		}
	}

	if h.redis != nil {
		services.Redis = statusConnected
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			services.Redis = statusDisconnected
		}
	}

	if h.postgres != nil {
		services.Postgres = statusConnected
		if st, err := h.postgres.HealthCheck(ctx); err != nil || !st.Connected {
			h.logger.Warn("Postgres health check failed", "error", err)
			services.Postgres = statusDisconnected
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, code int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
