package extract

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an extraction outcome; its value is the `error_type`
// metric label (spec §7).
type ErrorCode string

const (
	ErrCodeNone        ErrorCode = "none"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeCircuitOpen ErrorCode = "circuit_open"
	ErrCodeBrowserError ErrorCode = "browser_error"
)

// ExtractionError tags a driver-side failure of the pipeline (context, page
// or route setup) with an ErrorCode. Timeouts are reported as ErrTimeout and
// circuit rejections as *browser.CircuitOpenError, not as ExtractionError.
type ExtractionError struct {
	Code       ErrorCode
	Message    string
	Underlying error
}

func (e *ExtractionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Underlying
}

func (e *ExtractionError) Is(target error) bool {
	if t, ok := target.(*ExtractionError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

func newExtractionError(code ErrorCode, message string, err error) *ExtractionError {
	return &ExtractionError{Code: code, Message: message, Underlying: err}
}

// ErrTimeout is returned when no manifest request was sighted before the
// extraction's timeout elapsed.
var ErrTimeout = errors.New("extract: no manifest sighted before timeout")
