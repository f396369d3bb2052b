package provisioning

import (
	"errors"
	"fmt"
)

// ErrPermanent wraps failures that must not be retried: the attempt budget is
// exhausted or the panel rejected the request on business grounds. The job
// queue checks for it before scheduling another attempt.
var ErrPermanent = errors.New("permanent provisioning failure")

// TransientError marks external-call failures that are worth retrying:
// timeouts, connection failures and every 5xx. Server errors are treated as
// transient wholesale; the panel's own error classification has proven too
// unreliable to consult.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient panel error during %s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient panel error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// BusinessError marks explicit panel rejections (bad package code, duplicate
// username, insufficient credit). Retrying cannot fix these.
type BusinessError struct {
	Op      string
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("panel rejected %s: code=%s message=%s", e.Op, e.Code, e.Message)
}

// IsRetryable reports whether a failed attempt should be rescheduled.
// Unclassified errors count as retryable: unexpected failures are assumed
// transient until the attempt budget says otherwise.
func IsRetryable(err error) bool {
	var be *BusinessError
	if errors.As(err, &be) {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	return true
}

// ErrorCode extracts the panel error code for audit logging, or a coarse
// classification when none exists.
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode > 0 {
			return fmt.Sprintf("HTTP_%d", te.StatusCode)
		}
		return "CONNECTION"
	}
	return "UNEXPECTED"
}
