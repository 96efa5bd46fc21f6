package checker

import (
	"fmt"

	"github.com/saaga0h/ea-advisor/e2e/internal/observer"
	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
)

// CheckExpectation validates a topic expectation against the most recent
// message captured on ea/{session}/{topic}
func CheckExpectation(session string, exp scenario.Expectation, messages []observer.CapturedMessage) (bool, string, interface{}) {
	topic := observer.Topic(session, exp.Topic)

	latest, ok := observer.Latest(messages, topic)
	if !ok {
		return false, fmt.Sprintf("no messages found for topic %q", topic), nil
	}

	if _, isObject := latest.Payload.(map[string]interface{}); !isObject {
		return false, fmt.Sprintf("payload is not a JSON object, got %T", latest.Payload), latest.Payload
	}

	if ok, reason := MatchesExpectation(latest.Payload, exp.Payload); !ok {
		return false, reason, latest.Payload
	}
	return true, "", latest.Payload
}
