package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/promisingcoder/decision-scraper/internal/retry"
)

var testSchema = json.RawMessage(`{"type":"object","properties":{"decision_makers":{"type":"array"}},"required":["decision_makers"],"additionalProperties":false}`)

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"model": "gpt-4o-mini-2024-07-18",
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30},
	})
	return string(body)
}

func newTestProvider(url string, opts ...OpenAIOption) *OpenAI {
	opts = append([]OpenAIOption{WithBaseURL(url), WithRetryPolicy(retry.Policy{MaxRetries: 2})}, opts...)
	return NewOpenAI("sk-test", opts...)
}

// TestOpenAIExtractEntities tests the chat completions client.
func TestOpenAIExtractEntities(t *testing.T) {
	t.Parallel()

	t.Run("sends strict schema request", func(t *testing.T) {
		t.Parallel()

		type captured struct {
			path, auth string
			body       map[string]any
		}
		got := make(chan captured, 1)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			got <- captured{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, completion(`{"decision_makers":[]}`))
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL+"/v1/", WithModel("gpt-test"))
		defer p.Close()

		resp, err := p.ExtractEntities(context.Background(), Request{
			System:     "extract people",
			Prompt:     "page text",
			SchemaName: "decision_makers",
			Schema:     testSchema,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != `{"decision_makers":[]}` {
			t.Errorf("unexpected content %q", resp.Content)
		}
		if resp.PromptTokens != 120 || resp.CompletionTokens != 30 {
			t.Errorf("unexpected usage %d/%d", resp.PromptTokens, resp.CompletionTokens)
		}

		c := <-got
		if c.path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", c.path)
		}
		if c.auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", c.auth)
		}
		if c.body["model"] != "gpt-test" {
			t.Errorf("expected model gpt-test, got %v", c.body["model"])
		}
		if c.body["temperature"] != float64(0) {
			t.Errorf("expected temperature 0, got %v", c.body["temperature"])
		}
		format, _ := c.body["response_format"].(map[string]any)
		if format["type"] != "json_schema" {
			t.Fatalf("expected json_schema response format, got %v", format)
		}
		schema, _ := format["json_schema"].(map[string]any)
		if schema["strict"] != true || schema["name"] != "decision_makers" {
			t.Errorf("unexpected json_schema block %v", schema)
		}
		messages, _ := c.body["messages"].([]any)
		if len(messages) != 2 {
			t.Errorf("expected system and user messages, got %v", messages)
		}
	})

	t.Run("falls back to json object format without schema", func(t *testing.T) {
		t.Parallel()

		p := NewOpenAI("sk-test")
		req := p.buildRequest(Request{Prompt: "x"})
		if req.ResponseFormat.Type != "json_object" || req.ResponseFormat.JSONSchema != nil {
			t.Errorf("unexpected response format %+v", req.ResponseFormat)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}
	})

	t.Run("unauthorized is not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL)
		defer p.Close()

		_, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Incorrect API key provided" {
			t.Errorf("expected API error message, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", calls.Load())
		}
	})

	t.Run("missing key fails without a request", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			calls.Add(1)
		}))
		defer srv.Close()

		p := NewOpenAI("", WithBaseURL(srv.URL))
		_, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no calls, got %d", calls.Load())
		}
	})

	t.Run("retries rate limits", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
				return
			}
			fmt.Fprint(w, completion(`{"decision_makers":[]}`))
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL)
		defer p.Close()

		if _, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"}); err != nil {
			t.Fatalf("expected success after retry, got %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", calls.Load())
		}
	})

	t.Run("gives up on persistent server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "bad gateway")
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL)
		defer p.Close()

		_, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, retry.ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
		if errors.Is(err, ErrUnauthorized) {
			t.Error("server errors must not look like auth failures")
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"model":"m","choices":[]}`)
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL)
		defer p.Close()

		_, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("refusal", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"model":"m","choices":[{"message":{"role":"assistant","content":"","refusal":"I can't help with that."},"finish_reason":"stop"}]}`)
		}))
		defer srv.Close()

		p := newTestProvider(srv.URL)
		defer p.Close()

		_, err := p.ExtractEntities(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrRefused) {
			t.Errorf("expected ErrRefused, got %v", err)
		}
	})
}

// TestAPIError tests error classification.
func TestAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code         int
		transient    bool
		unauthorized bool
	}{
		{http.StatusUnauthorized, false, true},
		{http.StatusForbidden, false, true},
		{http.StatusBadRequest, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			t.Parallel()

			err := &APIError{StatusCode: tt.code}
			if err.Transient() != tt.transient {
				t.Errorf("Transient() = %v, want %v", err.Transient(), tt.transient)
			}
			if errors.Is(err, ErrUnauthorized) != tt.unauthorized {
				t.Errorf("errors.Is(ErrUnauthorized) = %v, want %v", !tt.unauthorized, tt.unauthorized)
			}
			if isTransient(fmt.Errorf("wrapped: %w", err)) != tt.transient {
				t.Errorf("isTransient mismatch for %d", tt.code)
			}
		})
	}
}
