package config

import "errors"

// Configuration validation errors returned by Config.Validate and the
// API key lookup. Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no URL was given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrNoAPIKey is returned when neither --api-key nor the environment provides a key.
	ErrNoAPIKey = errors.New("no API key: pass --api-key or set " + APIKeyEnv)

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetry is returned for negative retry settings.
	ErrInvalidRetry = errors.New("invalid retry settings: must be non-negative")

	// ErrInvalidTokenBudget is returned when the token budget is not positive.
	ErrInvalidTokenBudget = errors.New("invalid token budget: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidOutputFormat is returned for an unknown --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format: use table, json or markdown")
)
