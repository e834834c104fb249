package diag

import (
	"fmt"
	"regexp"
)

// Field names a configurable part of the endpoint.
type Field string

const (
	FieldHostname   Field = "hostname"
	FieldPort       Field = "port"
	FieldPath       Field = "path"
	FieldListen     Field = "listen"
	FieldRespond    Field = "respond"
	FieldDelay      Field = "delay"
	FieldDelayMs    Field = "delay_ms"
	FieldStatusCode Field = "status_code"
	FieldEmptyBody  Field = "empty_body"
	FieldBody       Field = "body"
	FieldStarted    Field = "started"
)

// ValidationError is returned when an operator change is rejected.
// The endpoint state is left untouched.
type ValidationError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// BindError is returned when the listener cannot acquire its address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind to %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

var (
	hostnameRe = regexp.MustCompile(`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)
	pathRe     = regexp.MustCompile(`^[a-zA-Z0-9.\-_~%+/]+$`)
)

// ValidateHostname checks s against the DNS label grammar.
func ValidateHostname(s string) error {
	if !hostnameRe.MatchString(s) {
		return &ValidationError{Field: FieldHostname, Value: s, Reason: "not a valid host name or address"}
	}
	return nil
}

// NormalizePath turns operator input into an endpoint path: empty input
// becomes "/", a missing leading slash is added, and the result must only
// contain unreserved URL characters.
func NormalizePath(s string) (string, error) {
	if s == "" {
		s = "/"
	}
	if s[0] != '/' {
		s = "/" + s
	}
	if !pathRe.MatchString(s) {
		return s, &ValidationError{Field: FieldPath, Value: s, Reason: "contains characters outside [A-Za-z0-9._~%+/-]"}
	}
	return s, nil
}

func validateNonNegative(f Field, v int) error {
	if v < 0 {
		return &ValidationError{Field: f, Value: fmt.Sprint(v), Reason: "must not be negative"}
	}
	return nil
}
