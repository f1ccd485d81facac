package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/retry"
)

const (
	chatCompletionsEndpoint = "/chat/completions"

	// defaultRequestTimeout bounds one API attempt.
	defaultRequestTimeout = 90 * time.Second

	// maxErrorBody limits how much of an error response is read.
	maxErrorBody = 8 * 1024
)

// OpenAI calls an OpenAI-compatible chat completions API. It owns its
// connection pool; call Close when done. It is safe for concurrent use.
type OpenAI struct {
	apiKey         string
	baseURL        string
	model          string
	requestTimeout time.Duration
	policy         retry.Policy
	client         *http.Client
	logger         *slog.Logger
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithBaseURL sets the API base URL, for example a proxy or a compatible server.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAI) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithModel sets the chat model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAI) {
		if model != "" {
			p.model = model
		}
	}
}

// WithRequestTimeout bounds each API attempt.
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAI) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

// WithRetryPolicy sets the retry policy for rate limits and server errors.
func WithRetryPolicy(policy retry.Policy) OpenAIOption {
	return func(p *OpenAI) {
		p.policy = policy
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAI) {
		if client != nil {
			p.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(p *OpenAI) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewOpenAI creates a provider authenticating with apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	p := &OpenAI{
		apiKey:         apiKey,
		baseURL:        config.DefaultBaseURL,
		model:          config.DefaultModel,
		requestTimeout: defaultRequestTimeout,
		policy:         retry.DefaultPolicy(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}}
	}
	return p
}

// Model returns the configured model name.
func (p *OpenAI) Model() string {
	return p.model
}

// Close releases idle connections.
func (p *OpenAI) Close() {
	p.client.CloseIdleConnections()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatResponseFormat struct {
	Type       string          `json:"type"` // "json_object" or "json_schema"
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ExtractEntities sends req to the chat completions endpoint and returns the
// assistant's message content. Rate limits, server errors and timeouts are
// retried; a 401 or 403 answer yields an error matching ErrUnauthorized.
func (p *OpenAI) ExtractEntities(ctx context.Context, req Request) (*Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: API key is not set", ErrUnauthorized)
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	var out *Response
	attempts, err := retry.Do(ctx, p.policy, isTransient, func(ctx context.Context) error {
		var err error
		out, err = p.post(ctx, body)
		return err
	})
	if err != nil {
		p.logger.Debug("extraction request failed", "model", p.model, "attempts", attempts, "error", err)
		return nil, err
	}

	p.logger.Debug("extraction request completed",
		"model", out.Model,
		"attempts", attempts,
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens,
	)
	return out, nil
}

func (p *OpenAI) buildRequest(req Request) chatCompletionRequest {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	format := &chatResponseFormat{Type: "json_object"}
	if len(req.Schema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		format = &chatResponseFormat{
			Type:       "json_schema",
			JSONSchema: &chatJSONSchema{Name: name, Schema: req.Schema, Strict: true},
		}
	}

	return chatCompletionRequest{
		Model:          p.model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: format,
	}
}

func (p *OpenAI) post(ctx context.Context, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chatCompletionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			p.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, readAPIError(res)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w", res.StatusCode, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := parsed.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{
		Content:      choice.Message.Content,
		Model:        parsed.Model,
		FinishReason: choice.FinishReason,
	}
	if parsed.Usage != nil {
		out.PromptTokens = parsed.Usage.PromptTokens
		out.CompletionTokens = parsed.Usage.CompletionTokens
	}
	return out, nil
}

func readAPIError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: res.StatusCode}
	var body apiErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		apiErr.Type = body.Error.Type
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// isTransient reports whether an API call failure is worth retrying.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
