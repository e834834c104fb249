// Package types defines shared types used across the webmondiag codebase.
package types

import (
	"time"
)

// Status is the externally visible snapshot of the diagnostic endpoint.
type Status struct {
	Hostname       string `json:"hostname" yaml:"hostname"`
	Port           uint16 `json:"port" yaml:"port"`
	Path           string `json:"path" yaml:"path"`
	ListenEnabled  bool   `json:"listen_enabled" yaml:"listen_enabled"`
	RespondEnabled bool   `json:"respond_enabled" yaml:"respond_enabled"`
	DelayEnabled   bool   `json:"delay_enabled" yaml:"delay_enabled"`
	DelayMs        int    `json:"delay_ms" yaml:"delay_ms"`
	StatusCode     int    `json:"status_code" yaml:"status_code"`
	EmptyBody      bool   `json:"empty_body" yaml:"empty_body"`
	Body           string `json:"body" yaml:"body"`
	BodySource     string `json:"body_source,omitempty" yaml:"body_source,omitempty"`
	Started        bool   `json:"started" yaml:"started"`
	Error          bool   `json:"error" yaml:"error"`

	// Derived predicates
	Listening  bool `json:"listening" yaml:"listening"`
	Responding bool `json:"responding" yaml:"responding"`
}

// Change is a partial update of the endpoint configuration.
// Nil fields are left untouched.
type Change struct {
	Hostname       *string `json:"hostname,omitempty"`
	Port           *uint16 `json:"port,omitempty"`
	Path           *string `json:"path,omitempty"`
	ListenEnabled  *bool   `json:"listen_enabled,omitempty"`
	RespondEnabled *bool   `json:"respond_enabled,omitempty"`
	DelayEnabled   *bool   `json:"delay_enabled,omitempty"`
	DelayMs        *int    `json:"delay_ms,omitempty"`
	StatusCode     *int    `json:"status_code,omitempty"`
	EmptyBody      *bool   `json:"empty_body,omitempty"`
	Body           *string `json:"body,omitempty"`
	BodyFile       *string `json:"body_file,omitempty"`
}

// IsEmpty reports whether the change sets no field at all.
func (c Change) IsEmpty() bool {
	return c == Change{}
}

// EventLevel represents the severity of a narrated event.
type EventLevel string

const (
	EventLevelInfo      EventLevel = "info"
	EventLevelHighlight EventLevel = "highlight"
	EventLevelError     EventLevel = "error"
)

// Event is one human-readable line of the operator event log.
type Event struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	Level     EventLevel `json:"level"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
}

// Session summarizes the events recorded by one process run.
type Session struct {
	ID        string    `json:"id"`
	Events    int       `json:"events"`
	Errors    int       `json:"errors"`
	StartedAt time.Time `json:"started_at"`
	LastAt    time.Time `json:"last_at"`
}

// EventList is the control API's answer to an event query.
type EventList struct {
	SessionID string   `json:"session_id,omitempty"`
	Events    []*Event `json:"events"`
}

// ErrorResponse is returned by the control API when a change is refused.
// State carries the endpoint state after the refusal when known.
type ErrorResponse struct {
	Error string  `json:"error"`
	State *Status `json:"state,omitempty"`
}
