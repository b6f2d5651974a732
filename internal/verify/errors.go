package verify

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"verifyctl/internal/poll"
	"verifyctl/internal/transport"
	"verifyctl/pkg/api"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError is invalid caller input, detected before any network call.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// Usagef builds a *UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// RunTimeoutError is returned when a run does not reach a terminal state
// before the poll deadline. It is distinct from a single request timing out.
type RunTimeoutError struct {
	RunID   string
	Elapsed time.Duration
	Err     *poll.TimeoutError
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run %s timed out after %s", e.RunID, e.Elapsed.Round(time.Millisecond))
}

func (e *RunTimeoutError) Unwrap() error { return e.Err }

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFailure
}

// ErrorCode is the machine-readable code used in JSON error output.
func ErrorCode(err error) string {
	var (
		usage   *UsageError
		timeout *RunTimeoutError
		reqErr  *transport.RequestError
		netErr  *transport.NetworkError
	)
	switch {
	case errors.As(err, &usage):
		return "USAGE_ERROR"
	case errors.As(err, &timeout):
		return "POLL_TIMEOUT"
	case errors.As(err, &reqErr):
		if reqErr.Code != "" {
			return reqErr.Code
		}
		return fmt.Sprintf("HTTP_%d", reqErr.Status)
	case errors.As(err, &netErr):
		return "NETWORK_ERROR"
	default:
		return "ERROR"
	}
}

// Describe turns an error into the message shown to the user.
func Describe(err error) string {
	var (
		usage   *UsageError
		timeout *RunTimeoutError
		reqErr  *transport.RequestError
		netErr  *transport.NetworkError
	)
	switch {
	case errors.As(err, &usage):
		return usage.Message
	case errors.As(err, &timeout):
		return fmt.Sprintf("Timed out after %s waiting for run %s to finish. It may still complete; check it with `verifyctl status %s`.",
			timeout.Elapsed.Round(time.Millisecond), timeout.RunID, timeout.RunID)
	case errors.As(err, &reqErr):
		return describeRequestError(reqErr)
	case errors.As(err, &netErr):
		return fmt.Sprintf("Network error: could not reach the verification service (%v).", netErr.Err)
	default:
		return err.Error()
	}
}

func describeRequestError(e *transport.RequestError) string {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "Authentication failed. Check your API token (--token or VERIFY_TOKEN)."
	case http.StatusPaymentRequired:
		return "Insufficient credits. Purchase more credits and try again; `verifyctl balance` shows what is left."
	case http.StatusConflict:
		detail := e.Message
		if detail == "" {
			detail = "the request conflicts with the current state of the resource"
		}
		return fmt.Sprintf("Conflict: %s.", detail)
	case http.StatusServiceUnavailable:
		return "The verification service is temporarily unavailable. Try again in a few minutes."
	default:
		return fmt.Sprintf("Request failed: %s", e.Error())
	}
}

// RejectionMessage explains a rejected run.
func RejectionMessage(code api.ReasonCode) string {
	switch code {
	case api.ReasonInsufficientCredits:
		return "Run rejected: insufficient credits. Purchase more credits and try again; `verifyctl balance` shows what is left."
	case api.ReasonNotImplemented:
		return "Run rejected: verification for this project type is not yet available."
	case api.ReasonConcurrencyLimit:
		return "Run rejected: too many runs in progress for this account. Retry shortly."
	case api.ReasonInvalidPayload:
		return "Run rejected: the submitted payload was invalid (INVALID_PAYLOAD)."
	case api.ReasonRunnerError:
		return "Run rejected: the verification runner hit an internal error (RUNNER_ERROR). Try again later."
	case api.ReasonRunTimeout:
		return "Run rejected: the run exceeded its time limit on the server (RUN_TIMEOUT)."
	case "":
		return "Run rejected by the verification service."
	default:
		return fmt.Sprintf("Run rejected by the verification service (%s).", code)
	}
}
