// Package llm is the language model client used by the entity extractor.
//
// Provider is the seam between extraction and a concrete model API. OpenAI
// implements it against any OpenAI-compatible chat completions endpoint,
// requesting strict JSON-schema output at temperature zero and retrying rate
// limits and server errors with backoff.
//
// Authentication failures match ErrUnauthorized so callers can stop a run
// instead of failing every page the same way.
package llm
