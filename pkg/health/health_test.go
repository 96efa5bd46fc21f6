package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saaga0h/ea-advisor/pkg/mqtt"
	"github.com/saaga0h/ea-advisor/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMQTT struct{ connected bool }

func (f *fakeMQTT) Connect(ctx context.Context) error                      { return nil }
func (f *fakeMQTT) Disconnect()                                            {}
func (f *fakeMQTT) Subscribe(string, byte, mqtt.MessageHandler) error      { return nil }
func (f *fakeMQTT) Publish(topic string, qos byte, r bool, p []byte) error { return nil }
func (f *fakeMQTT) IsConnected() bool                                      { return f.connected }

type fakeRedis struct{ pingErr error }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error       { return nil }
func (f *fakeRedis) Ping(ctx context.Context) error                      { return f.pingErr }
func (f *fakeRedis) Close() error                                        { return nil }

type fakePostgres struct{ connected bool }

func (f *fakePostgres) Connect(ctx context.Context) error { return nil }
func (f *fakePostgres) Disconnect() error                 { return nil }
func (f *fakePostgres) Exec(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (f *fakePostgres) QueryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return nil
}
func (f *fakePostgres) HealthCheck(ctx context.Context) (*postgres.HealthStatus, error) {
	if !f.connected {
		return &postgres.HealthStatus{Error: "connection refused"}, errors.New("connection refused")
	}
	return &postgres.HealthStatus{Connected: true}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		checker *Checker
		want    Services
	}{
		{
			name:    "nothing configured",
			checker: NewChecker(nil, nil, nil, discard()),
			want:    Services{MQTT: statusDisabled, Redis: statusDisabled, Postgres: statusDisabled},
		},
		{
			name:    "all healthy",
			checker: NewChecker(&fakeMQTT{connected: true}, &fakeRedis{}, &fakePostgres{connected: true}, discard()),
			want:    Services{MQTT: statusConnected, Redis: statusConnected, Postgres: statusConnected},
		},
		{
			name:    "all down",
			checker: NewChecker(&fakeMQTT{}, &fakeRedis{pingErr: errors.New("refused")}, &fakePostgres{}, discard()),
			want:    Services{MQTT: statusDisconnected, Redis: statusDisconnected, Postgres: statusDisconnected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *tt.checker.Check(context.Background()))
		})
	}
}

func TestDetailedHandlerDegraded(t *testing.T) {
	checker := NewChecker(&fakeMQTT{connected: true}, &fakeRedis{pingErr: errors.New("refused")}, nil, discard())

	rec := httptest.NewRecorder()
	checker.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, statusDisabled, resp.Services.Postgres)
}

func TestHandlerSkipsDependencies(t *testing.T) {
	checker := NewChecker(&fakeMQTT{}, nil, nil, discard())

	rec := httptest.NewRecorder()
	checker.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}
