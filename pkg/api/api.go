// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the test API server.
package api

import "time"

// RunStatus is the server-owned state of a verification run.
type RunStatus string

const (
	StatusQueued   RunStatus = "queued"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusTimeout  RunStatus = "timeout"
	StatusRejected RunStatus = "rejected"
)

// Terminal reports whether no further transition can happen from s.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimeout, StatusRejected:
		return true
	default:
		return false
	}
}

// ReasonCode explains why a run was rejected instead of executed.
type ReasonCode string

const (
	ReasonInsufficientCredits ReasonCode = "INSUFFICIENT_CREDITS"
	ReasonInvalidPayload      ReasonCode = "INVALID_PAYLOAD"
	ReasonNotImplemented      ReasonCode = "NOT_IMPLEMENTED"
	ReasonRunnerError         ReasonCode = "RUNNER_ERROR"
	ReasonRunTimeout          ReasonCode = "RUN_TIMEOUT"
	ReasonConcurrencyLimit    ReasonCode = "CONCURRENCY_LIMIT"
)

// File is a single uploaded source file.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"` // base64
}

// SubmitRunRequest is the request body for POST /verify/runs.
// Files and PackageRef are mutually exclusive.
type SubmitRunRequest struct {
	ProjectType string `json:"projectType"`
	PackageName string `json:"packageName,omitempty"`
	Source      string `json:"source,omitempty"`
	Files       []File `json:"files,omitempty"`
	PackageRef  string `json:"packageRef,omitempty"`
}

// SubmitRunResponse is the response body after submitting a run.
type SubmitRunResponse struct {
	RunID            string    `json:"runId"`
	Status           RunStatus `json:"status"`
	CreditsEstimated float64   `json:"creditsEstimated"`
}

// RunResponse represents a run in status responses.
type RunResponse struct {
	RunID       string     `json:"runId"`
	Status      RunStatus  `json:"status"`
	ReasonCode  ReasonCode `json:"reasonCode,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
}

// LogLevel is the severity of a log line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogLine represents a single remote log line.
type LogLine struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// LogsResponse is the response body for fetching a batch of logs.
type LogsResponse struct {
	Lines      []LogLine `json:"lines"`
	NextCursor string    `json:"nextCursor"`
	Done       bool      `json:"done"`
}

// Check is one named verification check inside a result.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// RunResult is the structured outcome of a terminal run.
type RunResult struct {
	RunID       string  `json:"runId"`
	Passed      bool    `json:"passed"`
	Summary     string  `json:"summary"`
	Checks      []Check `json:"checks"`
	CreditsUsed float64 `json:"creditsUsed"`
}

// BalanceResponse is the response body for GET /account/balance.
type BalanceResponse struct {
	Credits float64 `json:"credits"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}
