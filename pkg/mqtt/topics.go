package mqtt

import (
	"fmt"
	"strings"
)

// Topic suffixes under ea/{session}/
const (
	SuffixActivity      = "activity"
	SuffixContext       = "context"
	SuffixCommand       = "command"
	SuffixFeedback      = "feedback"
	SuffixSuggestions   = "suggestions"
	SuffixAutomation    = "automation"
	SuffixCommandResult = "command/result"
	SuffixStatus        = "status"
	SuffixTimeConfig    = "test/time_config"
)

// SessionTopic builds a topic for a dashboard session
// Pattern: ea/{session}/{suffix}
func SessionTopic(session, suffix string) string {
	return fmt.Sprintf("ea/%s/%s", session, suffix)
}

// TopicSuffix returns the part of a session topic after ea/{session}/,
// or "" when the topic does not belong to the session
func TopicSuffix(session, topic string) string {
	prefix := fmt.Sprintf("ea/%s/", session)
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	return strings.TrimPrefix(topic, prefix)
}
