package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// The transport error taxonomy is closed: every failure leaving this package
// is one of the types below, produced exactly once at the HTTP boundary.
// Callers match with errors.As and never inspect raw transport errors.

// NetworkError means no usable response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthenticationError means the server rejected the bearer credential and the
// single refresh-and-replay attempt is exhausted.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// ValidationError carries field-level messages from a 400/422 response.
type ValidationError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected with status %d", e.Status)
	}
	return e.Message
}

// ServerError is any 5xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d", e.Status)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// UnknownError is the fallback for response codes outside the taxonomy.
type UnknownError struct {
	Status  int
	Message string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

// errorEnvelope is the wire shape of API error responses.
type errorEnvelope struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// classify maps a non-2xx response to the taxonomy.
func classify(status int, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{Message: env.Error}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ValidationError{Status: status, Message: env.Error, Fields: env.Details}
	case status >= 500:
		return &ServerError{Status: status, Message: env.Error}
	default:
		return &UnknownError{Status: status, Message: env.Error}
	}
}
