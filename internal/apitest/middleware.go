package apitest

import (
	"net/http"
	"strings"

	"verifyctl/internal/auth"
)

// record keeps a copy of every request's headers.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// requireToken rejects requests without the scripted bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.httpError(w, r, "UNAUTHORIZED", "Missing bearer token", http.StatusUnauthorized)
			return
		}
		if s.tokenHash != "" && !auth.Matches(token, s.tokenHash) {
			s.httpError(w, r, "UNAUTHORIZED", "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit answers 429 with Retry-After once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "0")
			s.httpError(w, r, "RATE_LIMITED", "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
