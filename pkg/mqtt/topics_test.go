package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTopic(t *testing.T) {
	assert.Equal(t, "ea/tab-1/activity", SessionTopic("tab-1", SuffixActivity))
	assert.Equal(t, "ea/tab-1/command/result", SessionTopic("tab-1", SuffixCommandResult))
}

func TestTopicSuffix(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"ea/tab-1/feedback", SuffixFeedback},
		{"ea/tab-1/test/time_config", SuffixTimeConfig},
		{"ea/tab-2/feedback", ""},
		{"other/tab-1/feedback", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicSuffix("tab-1", tt.topic), tt.topic)
	}
}

type capturePublisher struct {
	topic    string
	retained bool
	payload  []byte
	err      error
}

func (c *capturePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	c.topic, c.retained, c.payload = topic, retained, payload
	return c.err
}

func TestPublishJSON(t *testing.T) {
	pub := &capturePublisher{}
	topic := SessionTopic("tab-1", SuffixSuggestions)

	require.NoError(t, PublishJSON(pub, topic, 0, map[string]int{"count": 2}))
	assert.Equal(t, "ea/tab-1/suggestions", pub.topic)
	assert.False(t, pub.retained)
	assert.JSONEq(t, `{"count":2}`, string(pub.payload))

	assert.Error(t, PublishJSON(pub, topic, 0, make(chan int)))

	pub.err = errors.New("not connected")
	assert.ErrorIs(t, PublishJSON(pub, topic, 0, "x"), pub.err)
}
