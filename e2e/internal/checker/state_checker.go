package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/saaga0h/ea-advisor/e2e/internal/scenario"
	"github.com/saaga0h/ea-advisor/internal/persistence"
)

// CheckStateExpectation validates a persisted session document against exp.State
func CheckStateExpectation(ctx context.Context, store persistence.Store, exp scenario.Expectation) (bool, string, interface{}) {
	if store == nil {
		return false, "no state store configured", nil
	}

	data, err := store.Load(ctx, exp.StateKey)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, fmt.Sprintf("state document %q not found", exp.StateKey), nil
	}
	if err != nil {
		return false, fmt.Sprintf("state store error: %v", err), nil
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Sprintf("state document %q is not JSON: %v", exp.StateKey, err), string(data)
	}

	if ok, reason := MatchesExpectation(doc, exp.State); !ok {
		return false, reason, doc
	}
	return true, "", doc
}
