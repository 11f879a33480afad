// Package szerr defines the structured error type shared by the szdat packages.
package szerr

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindIO reports a filesystem or stream failure.
	KindIO Kind = "IO"
	// KindDecode reports structurally invalid serialized bytes.
	KindDecode Kind = "Decode"
	// KindVerification reports a signature that does not match the body.
	KindVerification Kind = "Verification"
	// KindKeyFormat reports an invalid key or key text encoding.
	KindKeyFormat Kind = "KeyFormat"
	// KindPath reports a file path that is unsafe to extract.
	KindPath Kind = "Path"
	// KindClock reports an unusable wall-clock reading.
	KindClock    Kind = "Clock"
	KindInternal Kind = "Internal"
)

// Error is the structured error type returned by szdat packages.
//
// RuleID is a stable identifier (e.g. SZDAT-DEC-002, SZDAT-SIG-401) naming the
// violated rule. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an *Error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Wrap returns an *Error carrying cause. A nil cause behaves like New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
