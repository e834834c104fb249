// Package diag implements the fault-injecting diagnostic endpoint: the
// endpoint state, the responder that applies fault modes to live requests,
// and the coordinator that validates and applies operator changes.
package diag

import (
	"net"
	"strconv"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// Defaults for a freshly created endpoint.
const (
	DefaultHostname   = "127.0.0.1"
	DefaultPort       = uint16(8080)
	DefaultPath       = "/"
	DefaultDelayMs    = 1
	DefaultStatusCode = 200
)

// State describes the endpoint configuration and its runtime status.
// A State is a plain value; the live one is published by a Store.
type State struct {
	Hostname       string
	Port           uint16
	Path           string
	ListenEnabled  bool
	RespondEnabled bool
	DelayEnabled   bool
	DelayMs        int
	StatusCode     int
	EmptyBody      bool
	Body           string
	BodySource     string // file the body was loaded from, empty for none

	// Written by the Responder.
	Started bool
	Error   bool
}

// DefaultState returns the state every endpoint starts with.
func DefaultState() State {
	return State{
		Hostname:       DefaultHostname,
		Port:           DefaultPort,
		Path:           DefaultPath,
		ListenEnabled:  true,
		RespondEnabled: true,
		DelayMs:        DefaultDelayMs,
		StatusCode:     DefaultStatusCode,
	}
}

// IsListening reports whether the socket should currently be accepting.
func (s State) IsListening() bool {
	return s.ListenEnabled && s.Started
}

// IsResponding reports whether accepted requests may be answered now.
func (s State) IsResponding() bool {
	return s.RespondEnabled && s.IsListening()
}

// EffectiveBody is the body a request answered now would carry.
func (s State) EffectiveBody() string {
	if s.EmptyBody {
		return ""
	}
	return s.Body
}

// Addr returns the host:port the endpoint binds to.
func (s State) Addr() string {
	return net.JoinHostPort(s.Hostname, strconv.Itoa(int(s.Port)))
}

// Equal compares every externally visible field.
func (s State) Equal(o State) bool {
	return s == o
}

// Status converts the state into its wire representation.
func (s State) Status() types.Status {
	return types.Status{
		Hostname:       s.Hostname,
		Port:           s.Port,
		Path:           s.Path,
		ListenEnabled:  s.ListenEnabled,
		RespondEnabled: s.RespondEnabled,
		DelayEnabled:   s.DelayEnabled,
		DelayMs:        s.DelayMs,
		StatusCode:     s.StatusCode,
		EmptyBody:      s.EmptyBody,
		Body:           s.Body,
		BodySource:     s.BodySource,
		Started:        s.Started,
		Error:          s.Error,
		Listening:      s.IsListening(),
		Responding:     s.IsResponding(),
	}
}
