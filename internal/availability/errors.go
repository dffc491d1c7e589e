package availability

import "errors"

// Kind classifies engine failures. Empty slot lists are never errors; a kind
// is only reported for malformed input.
type Kind string

const (
	// KindInvalidDate marks malformed or out-of-range calendar dates.
	KindInvalidDate Kind = "INVALID_DATE"
	// KindInvalidConfig marks weekday indices outside 0-6, malformed time
	// strings, non-positive intervals and inverted time windows.
	KindInvalidConfig Kind = "INVALID_CONFIG"
)

// Error is the typed failure returned by the engine.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, or "" when the error did not
// originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInvalidDate reports whether err is a calendar-date validation failure.
func IsInvalidDate(err error) bool { return KindOf(err) == KindInvalidDate }

// IsInvalidConfig reports whether err is a window-configuration failure.
func IsInvalidConfig(err error) bool { return KindOf(err) == KindInvalidConfig }
