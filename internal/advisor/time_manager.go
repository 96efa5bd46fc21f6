package advisor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/ea-advisor/pkg/mqtt"
)

// TimeManager supplies the clock the engines use. In test mode it runs a
// scaled virtual clock configured over MQTT.
type TimeManager struct {
	mu           sync.RWMutex
	testMode     bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	logger       *slog.Logger
}

// NewTimeManager creates a time manager on the real clock
func NewTimeManager(logger *slog.Logger) *TimeManager {
	return &TimeManager{
		realStart: time.Now(),
		timeScale: 1,
		logger:    logger,
	}
}

// ConfigureFromMQTT subscribes to ea/{session}/test/time_config
func (tm *TimeManager) ConfigureFromMQTT(client mqtt.Subscriber, session string) error {
	return client.Subscribe(mqtt.SessionTopic(session, mqtt.SuffixTimeConfig), 1, func(msg mqtt.Message) {
		tm.HandleConfig(msg.Payload())
	})
}

// HandleConfig applies a {"test_mode", "virtual_start", "time_scale"} payload
func (tm *TimeManager) HandleConfig(payload []byte) {
	var config struct {
		VirtualStart string `json:"virtual_start"`
		TimeScale    int    `json:"time_scale"`
		TestMode     bool   `json:"test_mode"`
	}

	if err := json.Unmarshal(payload, &config); err != nil {
		tm.logger.Error("Failed to parse test mode config", "error", err)
		return
	}

	if !config.TestMode {
		tm.mu.Lock()
		tm.testMode = false
		tm.mu.Unlock()
		tm.logger.Info("Test mode disabled")
		return
	}

	virtualStart, err := time.Parse(time.RFC3339, config.VirtualStart)
	if err != nil {
		tm.logger.Error("Invalid virtual_start time", "error", err)
		return
	}
	if config.TimeScale < 1 {
		config.TimeScale = 1
	}

	tm.mu.Lock()
	tm.testMode = true
	tm.virtualStart = virtualStart
	tm.realStart = time.Now()
	tm.timeScale = config.TimeScale
	tm.mu.Unlock()

	tm.logger.Info("Test mode configured",
		"virtual_start", config.VirtualStart,
		"time_scale", config.TimeScale)
}

// Now returns the current time (real or virtual)
func (tm *TimeManager) Now() time.Time {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.testMode {
		return time.Now()
	}

	elapsed := time.Since(tm.realStart) * time.Duration(tm.timeScale)
	return tm.virtualStart.Add(elapsed)
}

// IsTestMode returns whether test mode is active
func (tm *TimeManager) IsTestMode() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.testMode
}
