// Package log provides slog loggers that mask secrets before anything is written.
//
// The SecureHandler wraps any slog.Handler and replaces sensitive values with
// MaskValue:
//   - HTTP headers (Authorization, Cookie, X-Api-Key)
//   - provider API keys, passed under keys such as api_key or token, or
//     recognized by shape (sk-..., JWTs, bearer values)
//   - session identifiers
//
// Values stay masked in verbose mode too.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("calling provider", "model", model, "api_key", key) // api_key is masked
//	slog.SetDefault(logger)
//
// NewSecureLogger renders through charmbracelet/log for terminals;
// NewSecureJSONLogger emits one JSON object per record.
package log
