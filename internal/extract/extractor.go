package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/promisingcoder/decision-scraper/internal/llm"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

// Extractor turns reduced page content into validated decision-maker records.
// It is safe for concurrent use if its Provider is.
type Extractor struct {
	provider llm.Provider
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor backed by provider.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the provider for the decision-makers named in content.
//
// Empty content yields no records and no provider call. A malformed
// provider answer yields an error matching ErrMalformedResponse. An
// authentication failure yields a *model.FatalError matching
// model.ErrAuthentication. Other provider failures are returned wrapped.
func (e *Extractor) Extract(ctx context.Context, content model.ReducedContent) ([]model.DecisionMaker, error) {
	if content.Empty() {
		return nil, nil
	}

	resp, err := e.provider.ExtractEntities(ctx, llm.Request{
		System:     SystemPrompt,
		Prompt:     BuildPrompt(content),
		SchemaName: SchemaName,
		Schema:     ResponseSchema(),
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnauthorized) {
			return nil, model.NewFatalError(model.KindAuthentication, content.SourceURL, err)
		}
		return nil, fmt.Errorf("extraction request for %s: %w", content.SourceURL, err)
	}

	candidates, err := Parse(resp.Content)
	if err != nil {
		e.logger.Debug("unparsable extraction output",
			"url", content.SourceURL,
			"error", err,
			"preview", preview(resp.Content, 200),
		)
		return nil, err
	}

	return e.validate(content, candidates), nil
}

// validate filters candidates and converts the survivors to records.
func (e *Extractor) validate(content model.ReducedContent, candidates []Candidate) []model.DecisionMaker {
	domain := model.DomainOf(content.SourceURL)
	out := make([]model.DecisionMaker, 0, len(candidates))

	for _, c := range candidates {
		c.Name = collapse(c.Name)
		c.Title = collapse(c.Title)

		if reason := rejectReason(c); reason != "" {
			e.logger.Debug("dropped candidate", "url", content.SourceURL, "name", c.Name, "title", c.Title, "reason", reason)
			continue
		}

		dm := model.DecisionMaker{
			Name:          c.Name,
			Title:         c.Title,
			Email:         c.Email,
			Phone:         c.Phone,
			LinkedIn:      c.LinkedIn,
			SourceURL:     content.SourceURL,
			CompanyDomain: domain,
		}

		notes := contactFields(&dm)
		confidence, why := Confidence(c, content.Text)
		dm.Confidence = confidence
		notes = append(notes, why)
		if content.Truncated {
			notes = append(notes, "page text was truncated before extraction")
		}
		dm.ExtractionNotes = notes

		out = append(out, dm)
	}

	e.logger.Debug("extracted decision makers",
		"url", content.SourceURL,
		"candidates", len(candidates),
		"accepted", len(out),
	)
	return out
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
