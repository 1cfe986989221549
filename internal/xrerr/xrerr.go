// Package xrerr is the runtime's error substrate: a fixed set of error
// kinds that applications branch on, a structured error value carrying the
// kind and a message, and the short-circuiting check sequence every entry
// point runs before touching state.
package xrerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Callers branch on Kind, never on the
// message text.
type Kind int

const (
	KindNone Kind = iota
	HandleInvalid
	ArgumentInvalid
	ValidationFailure
	TimeInvalid
	SizeInsufficient
	SessionLost
	SessionNotRunning
	SessionRunning
	FeatureUnsupported
	FunctionUnsupported
	ViewConfigurationTypeUnsupported
	RuntimeFailure
	PoseInvalid
	ReferenceSpaceUnsupported
	EnvironmentBlendModeUnsupported
	LayerInvalid
	DisplayRefreshRateUnsupported
)

var kindNames = map[Kind]string{
	KindNone:                         "XR_SUCCESS",
	HandleInvalid:                    "XR_ERROR_HANDLE_INVALID",
	ArgumentInvalid:                  "XR_ERROR_VALIDATION_FAILURE(argument)",
	ValidationFailure:                "XR_ERROR_VALIDATION_FAILURE",
	TimeInvalid:                      "XR_ERROR_TIME_INVALID",
	SizeInsufficient:                 "XR_ERROR_SIZE_INSUFFICIENT",
	SessionLost:                      "XR_ERROR_SESSION_LOST",
	SessionNotRunning:                "XR_ERROR_SESSION_NOT_RUNNING",
	SessionRunning:                   "XR_ERROR_SESSION_RUNNING",
	FeatureUnsupported:               "XR_ERROR_FEATURE_UNSUPPORTED",
	FunctionUnsupported:              "XR_ERROR_FUNCTION_UNSUPPORTED",
	ViewConfigurationTypeUnsupported: "XR_ERROR_VIEW_CONFIGURATION_TYPE_UNSUPPORTED",
	RuntimeFailure:                   "XR_ERROR_RUNTIME_FAILURE",
	PoseInvalid:                      "XR_ERROR_POSE_INVALID",
	ReferenceSpaceUnsupported:        "XR_ERROR_REFERENCE_SPACE_UNSUPPORTED",
	EnvironmentBlendModeUnsupported:  "XR_ERROR_ENVIRONMENT_BLEND_MODE_UNSUPPORTED",
	LayerInvalid:                     "XR_ERROR_LAYER_INVALID",
	DisplayRefreshRateUnsupported:    "XR_ERROR_DISPLAY_REFRESH_RATE_UNSUPPORTED_FB",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("XR_ERROR_UNKNOWN(%d)", int(k))
}

// Error is the structured failure returned by every public operation.
type Error struct {
	Kind Kind
	// Func is the API function that failed; filled in by the entry layer.
	Func string
	Msg  string
	// Required is the item count the caller must provide; set for
	// SizeInsufficient.
	Required int
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Func, e.Kind, e.Msg)
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrSessionLost)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// In returns a copy of e attributed to the API function fn. An error that
// already names a function keeps it.
func (e *Error) In(fn string) *Error {
	if e.Func != "" {
		return e
	}
	c := *e
	c.Func = fn
	return &c
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind caused by err. The message is the
// formatted text followed by err's message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// Insufficient builds a SizeInsufficient error that reports the required
// item count.
func Insufficient(required int, format string, args ...interface{}) *Error {
	return &Error{Kind: SizeInsufficient, Msg: fmt.Sprintf(format, args...), Required: required}
}

// KindOf returns the kind of err, KindNone for nil, and RuntimeFailure for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return RuntimeFailure
}

// Sentinels for errors.Is comparisons.
var (
	ErrHandleInvalid                    = &Error{Kind: HandleInvalid}
	ErrArgumentInvalid                  = &Error{Kind: ArgumentInvalid}
	ErrValidationFailure                = &Error{Kind: ValidationFailure}
	ErrTimeInvalid                      = &Error{Kind: TimeInvalid}
	ErrSizeInsufficient                 = &Error{Kind: SizeInsufficient}
	ErrSessionLost                      = &Error{Kind: SessionLost}
	ErrSessionNotRunning                = &Error{Kind: SessionNotRunning}
	ErrSessionRunning                   = &Error{Kind: SessionRunning}
	ErrFeatureUnsupported               = &Error{Kind: FeatureUnsupported}
	ErrFunctionUnsupported              = &Error{Kind: FunctionUnsupported}
	ErrViewConfigurationTypeUnsupported = &Error{Kind: ViewConfigurationTypeUnsupported}
	ErrRuntimeFailure                   = &Error{Kind: RuntimeFailure}
)

// Qualifier is a non-fatal success code carried alongside a successful
// result.
type Qualifier int

const (
	Success Qualifier = iota
	// EventUnavailable: the event queue was empty.
	EventUnavailable
	// SessionLossPending: the call succeeded but the session is being lost.
	SessionLossPending
)

func (q Qualifier) String() string {
	switch q {
	case Success:
		return "XR_SUCCESS"
	case EventUnavailable:
		return "XR_EVENT_UNAVAILABLE"
	case SessionLossPending:
		return "XR_SESSION_LOSS_PENDING"
	default:
		return fmt.Sprintf("XR_QUALIFIER_UNKNOWN(%d)", int(q))
	}
}
