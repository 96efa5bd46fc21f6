// Package activity records discrete dashboard user actions in a bounded log.
package activity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type classifies an observed user action
type Type string

const (
	TypeViewChange      Type = "view_change"
	TypeDataInteraction Type = "data_interaction"
	TypeCreation        Type = "creation"
	TypeAnalysis        Type = "analysis"
	TypeExport          Type = "export"
	TypeSearch          Type = "search"
)

// Classification tags an action result may carry
const (
	TagDataQuality = "data_quality"
	TagSecurity    = "security"
)

// Valid reports whether t is one of the known activity types
func (t Type) Valid() bool {
	switch t {
	case TypeViewChange, TypeDataInteraction, TypeCreation, TypeAnalysis, TypeExport, TypeSearch:
		return true
	}
	return false
}

// Complex reports whether the type counts toward expertise
func (t Type) Complex() bool {
	return t == TypeAnalysis || t == TypeCreation || t == TypeExport
}

// Details carries what the action touched and what came of it
type Details struct {
	View     string                 `json:"view,omitempty"`
	Action   string                 `json:"action,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Duration *time.Duration         `json:"duration,omitempty"`
	Result   interface{}            `json:"result,omitempty"`
	// Tags classify the result explicitly (e.g. data_quality, security)
	Tags []string `json:"tags,omitempty"`
}

// HasTag reports whether the details carry tag
func (d Details) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Activity is one observed user action. It is never mutated after creation.
type Activity struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   Details   `json:"details"`
}

var (
	ErrMissingType      = errors.New("activity type is required")
	ErrUnknownType      = errors.New("unknown activity type")
	ErrMissingTimestamp = errors.New("activity timestamp is required")
)

// New creates an activity with a fresh id
func New(t Type, details Details, at time.Time) Activity {
	return Activity{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: at,
		Details:   details,
	}
}

// Validate checks the only required fields: type and timestamp
func (a Activity) Validate() error {
	if a.Type == "" {
		return ErrMissingType
	}
	if !a.Type.Valid() {
		return ErrUnknownType
	}
	if a.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Key is the action key used for repetition detection: type_action
func (a Activity) Key() string {
	return string(a.Type) + "_" + a.Details.Action
}

// Label is the workflow label: the view when known, otherwise the type
func (a Activity) Label() string {
	if a.Details.View != "" {
		return a.Details.View
	}
	return string(a.Type)
}
