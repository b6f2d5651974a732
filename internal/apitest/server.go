// Package apitest runs a scripted, in-memory verification API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"verifyctl/internal/auth"
	"verifyctl/pkg/api"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Endpoint names used by Calls.
const (
	EndpointSubmit  = "submit"
	EndpointStatus  = "status"
	EndpointLogs    = "logs"
	EndpointResult  = "result"
	EndpointBalance = "balance"
	EndpointHealth  = "health"
)

// Script describes how the server behaves.
type Script struct {
	// Token is the bearer token the server accepts. Empty accepts any token.
	Token string

	RunID            string
	CreditsEstimated float64

	// Statuses are returned by successive status polls; the last one repeats.
	Statuses   []api.RunStatus
	ReasonCode api.ReasonCode

	Logs         []api.LogLine
	LogBatchSize int // default: 2

	Result  api.RunResult
	Balance float64

	// SubmitStatus makes the submit call fail with this HTTP status.
	SubmitStatus int
	// DropStatus closes the connection on every status poll.
	DropStatus bool
	// RateLimit enables a request-per-second token bucket answering 429.
	RateLimit float64
	RateBurst int
}

// Server is a running scripted API.
type Server struct {
	*httptest.Server

	script    Script
	tokenHash string
	limiter   *rate.Limiter

	mu          sync.Mutex
	calls       map[string]int
	statusIdx   int
	submissions []api.SubmitRunRequest
	headers     []http.Header
}

// NewServer starts a server following script. Callers must Close it.
func NewServer(script Script) *Server {
	if script.RunID == "" {
		script.RunID = uuid.NewString()
	}
	if len(script.Statuses) == 0 {
		script.Statuses = []api.RunStatus{api.StatusSuccess}
	}
	if script.LogBatchSize <= 0 {
		script.LogBatchSize = 2
	}

	s := &Server{
		script: script,
		calls:  map[string]int{},
	}
	if script.Token != "" {
		s.tokenHash = auth.HashKey(script.Token)
	}
	if script.RateLimit > 0 {
		burst := script.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(script.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /verify/runs", s.submitRun)
	mux.HandleFunc("GET /verify/runs/{id}", s.getRun)
	mux.HandleFunc("GET /verify/runs/{id}/logs", s.getLogs)
	mux.HandleFunc("GET /verify/runs/{id}/result", s.getResult)
	mux.HandleFunc("GET /account/balance", s.getBalance)
	mux.HandleFunc("GET /health", s.health)

	s.Server = httptest.NewServer(s.record(s.requireToken(s.rateLimit(mux))))
	return s
}

// RunID returns the id assigned to submitted runs.
func (s *Server) RunID() string { return s.script.RunID }

// Calls returns how many requests hit endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Submissions returns every decoded submit body.
func (s *Server) Submissions() []api.SubmitRunRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.SubmitRunRequest, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Headers returns the request headers seen so far, in arrival order.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointSubmit)

	var req api.SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.httpError(w, r, "INVALID_PAYLOAD", "Invalid request body", http.StatusBadRequest)
		return
	}
	if (len(req.Files) > 0) == (req.PackageRef != "") {
		s.httpError(w, r, "INVALID_PAYLOAD", "Exactly one of files or packageRef is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, req)
	s.mu.Unlock()

	if s.script.SubmitStatus != 0 {
		s.httpError(w, r, "SUBMIT_FAILED", http.StatusText(s.script.SubmitStatus), s.script.SubmitStatus)
		return
	}

	s.respondJson(w, http.StatusCreated, api.SubmitRunResponse{
		RunID:            s.script.RunID,
		Status:           api.StatusQueued,
		CreditsEstimated: s.script.CreditsEstimated,
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointStatus)

	if s.script.DropStatus {
		dropConnection(w)
		return
	}
	if r.PathValue("id") != s.script.RunID {
		s.httpError(w, r, "NOT_FOUND", "Run not found", http.StatusNotFound)
		return
	}

	s.mu.Lock()
	idx := s.statusIdx
	if idx < len(s.script.Statuses)-1 {
		s.statusIdx++
	}
	s.mu.Unlock()

	run := api.RunResponse{RunID: s.script.RunID, Status: s.script.Statuses[idx]}
	if run.Status == api.StatusRejected {
		run.ReasonCode = s.script.ReasonCode
	}
	s.respondJson(w, http.StatusOK, run)
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointLogs)

	if r.PathValue("id") != s.script.RunID {
		s.httpError(w, r, "NOT_FOUND", "Run not found", http.StatusNotFound)
		return
	}

	offset := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			s.httpError(w, r, "INVALID_CURSOR", "Invalid cursor", http.StatusBadRequest)
			return
		}
		offset = parsed
	}
	if offset > len(s.script.Logs) {
		offset = len(s.script.Logs)
	}

	end := offset + s.script.LogBatchSize
	if end > len(s.script.Logs) {
		end = len(s.script.Logs)
	}

	s.mu.Lock()
	terminal := s.script.Statuses[s.statusIdx].Terminal()
	s.mu.Unlock()

	s.respondJson(w, http.StatusOK, api.LogsResponse{
		Lines:      s.script.Logs[offset:end],
		NextCursor: strconv.Itoa(end),
		Done:       terminal && end == len(s.script.Logs),
	})
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointResult)

	if r.PathValue("id") != s.script.RunID {
		s.httpError(w, r, "NOT_FOUND", "Run not found", http.StatusNotFound)
		return
	}

	result := s.script.Result
	result.RunID = s.script.RunID
	s.respondJson(w, http.StatusOK, result)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointBalance)
	s.respondJson(w, http.StatusOK, api.BalanceResponse{Credits: s.script.Balance})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.count(EndpointHealth)
	w.WriteHeader(http.StatusNoContent)
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

// A helper function to write standard JSON responses.
func (s *Server) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error bodies.
func (s *Server) httpError(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	s.respondJson(w, status, api.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: r.Header.Get("X-Request-Id"),
	})
}
