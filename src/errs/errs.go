// Package errs defines the error taxonomy shared by the pipeline model and the event handlers.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies an error. The string value doubles as the error's serialized name.
type Kind string

const (
	// KindConfiguration marks an invalid pipeline graph or missing deployment configuration.
	KindConfiguration Kind = "ConfigurationError"
	// KindParse marks a malformed request body, event payload or revision URL.
	KindParse Kind = "ParseError"
	// KindUpstream marks a failure reported by an external service.
	KindUpstream Kind = "UpstreamError"
)

var (
	// ErrConfiguration matches any ConfigurationError with errors.Is.
	ErrConfiguration = &Error{Kind: KindConfiguration}
	// ErrParse matches any ParseError with errors.Is.
	ErrParse = &Error{Kind: KindParse}
	// ErrUpstream matches any UpstreamError with errors.Is.
	ErrUpstream = &Error{Kind: KindUpstream}
)

// Error is a classified error with an optional operator hint and cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (hint: " + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare kind sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Op == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// WithHint returns a copy of e carrying an operator hint.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

// MarshalJSON serializes the error's own properties.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(Properties(e))
}

// Configuration creates a ConfigurationError.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Parse creates a ParseError.
func Parse(format string, args ...any) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps an error returned by an external service call.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Wrap classifies err under kind with a message, keeping err as the cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsParse reports whether err is a ParseError.
func IsParse(err error) bool { return errors.Is(err, ErrParse) }

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstream) }

// Properties returns the serializable properties of err: name, message and,
// when present, op, hint and cause. Unclassified errors are named "Error".
func Properties(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}

	var e *Error
	if !errors.As(err, &e) {
		return map[string]any{
			"name":    "Error",
			"message": err.Error(),
		}
	}

	props := map[string]any{
		"name":    string(e.Kind),
		"message": e.Message,
	}
	if e.Message == "" && e.Err != nil {
		props["message"] = e.Err.Error()
	}
	if e.Op != "" {
		props["op"] = e.Op
	}
	if e.Hint != "" {
		props["hint"] = e.Hint
	}
	if e.Err != nil {
		props["cause"] = e.Err.Error()
	}
	return props
}
