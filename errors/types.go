package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// IPC errors
	ErrCodeProtocolVersion   ErrorCode = "PROTOCOL_VERSION"
	ErrCodeUnknownMethod     ErrorCode = "UNKNOWN_METHOD"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// Persistence errors
	ErrCodeEventLog ErrorCode = "EVENT_LOG"

	// Lock errors
	ErrCodeLockExists   ErrorCode = "LOCK_EXISTS"
	ErrCodeLockHeld     ErrorCode = "LOCK_HELD"
	ErrCodeLockCorrupt  ErrorCode = "LOCK_CORRUPT"
	ErrCodeLockNotOwned ErrorCode = "LOCK_NOT_OWNED"
	ErrCodeLockNotFound ErrorCode = "LOCK_NOT_FOUND"

	// Process errors
	ErrCodeProcessProbe ErrorCode = "PROCESS_PROBE"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// HudError represents a structured error with context
type HudError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *HudError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *HudError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *HudError) WithDetail(key string, value interface{}) *HudError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *HudError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new HudError
func New(code ErrorCode, message string) *HudError {
	return &HudError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a HudError
func Wrap(err error, code ErrorCode, message string) *HudError {
	return &HudError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific HudError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error. The first HudError found
// while unwrapping wins.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	hudErr, ok := err.(*HudError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return hudErr.Code
}

// As returns the outermost HudError in the chain, if any.
func As(err error) (*HudError, bool) {
	for err != nil {
		if hudErr, ok := err.(*HudError); ok {
			return hudErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
