package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the provider rejects the API credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptyResponse is returned when the provider answered without content.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrRefused is returned when the model declined to answer.
	ErrRefused = errors.New("model refused the request")
)

// Request is a single structured-extraction call.
type Request struct {
	// System is the system instruction.
	System string

	// Prompt is the user message carrying the page text.
	Prompt string

	// SchemaName names the response schema.
	SchemaName string

	// Schema is a JSON Schema the response must conform to.
	// When empty the provider is only asked for a JSON object.
	Schema json.RawMessage
}

// Response is the raw structured text returned by a provider.
type Response struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Provider sends extraction requests to a language model.
// Implementations must be safe for concurrent use.
type Provider interface {
	ExtractEntities(ctx context.Context, req Request) (*Response, error)
}

// APIError is a non-2xx answer from the provider API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 and 403 responses.
// Both repeat on every request made with the same key.
func (e *APIError) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Transient reports whether the request is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
