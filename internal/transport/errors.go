package transport

import (
	"fmt"
	"net/http"
)

// RequestError is a decoded failure response from the API.
type RequestError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, msg)
}

// NetworkError is returned when every attempt failed without a usable response.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
