// Package analysis turns a code snippet into a structured review by calling a
// chat-completions model once and decoding its answer.
//
// The pipeline is: validate input, optionally redact secrets, render the
// prompt, call the model, strip markdown fences and decode. A model answer
// that cannot be decoded does not fail the call; the caller receives the
// Fallback record instead, whose Error field marks it as degraded.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/llm"
)

// Defaults used when Analyzer fields are left zero.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// ErrEmptyInput is returned for empty or whitespace-only snippets.
var ErrEmptyInput = apperror.ValidationFailed("code", "Code snippet is required")

// Analyzer runs the analysis pipeline against a Completer.
type Analyzer struct {
	LLM           llm.Completer
	// Temperature overrides DefaultTemperature when set; 0 is honoured.
	Temperature   *float64
	MaxTokens     int
	RedactSecrets bool
}

// New returns an Analyzer with the default sampling parameters.
func New(c llm.Completer) *Analyzer {
	return &Analyzer{LLM: c, MaxTokens: DefaultMaxTokens}
}

// Analyze reviews code with the general-purpose prompt.
func (a *Analyzer) Analyze(ctx context.Context, code string) (domain.Analysis, error) {
	return a.AnalyzeFocus(ctx, code, FocusGeneral)
}

// AnalyzeFocus reviews code with the prompt for focus. Errors are
// *apperror.AppError: validation for empty input, upstream when the model
// call fails or returns nothing.
func (a *Analyzer) AnalyzeFocus(ctx context.Context, code string, focus Focus) (domain.Analysis, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Analysis{}, ErrEmptyInput
	}

	ctx, span := otel.Tracer("analysis").Start(ctx, "Analyzer.AnalyzeFocus")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.focus", string(focus)),
		attribute.Int("analysis.code_len", len(code)),
	)

	start := time.Now()
	outcome := outcomeError
	defer func() { observe(focus, outcome, time.Since(start)) }()

	if a.RedactSecrets {
		code = RedactSecrets(code)
	}

	temp, maxTokens := DefaultTemperature, a.MaxTokens
	if a.Temperature != nil {
		temp = *a.Temperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	resp, err := a.LLM.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: BuildPrompt(focus, code)},
		},
		Temperature: &temp,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		if errors.Is(err, llm.ErrEmptyResponse) {
			return domain.Analysis{}, noResponse(err)
		}
		var se *llm.StatusError
		if errors.As(err, &se) {
			return domain.Analysis{}, apperror.Upstream("Failed to analyze code", errors.New(se.Message))
		}
		return domain.Analysis{}, apperror.Upstream("Failed to analyze code", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return domain.Analysis{}, noResponse(llm.ErrEmptyResponse)
	}
	span.SetAttributes(attribute.Int("llm.tokens_used", resp.TokensUsed))

	an, perr := Parse(resp.Content)
	if perr != nil {
		outcome = outcomeDegraded
		log.Ctx(ctx).Warn().Err(perr).Int("content_len", len(resp.Content)).Msg("analysis: model output not parseable, using fallback")
		return Fallback(), nil
	}
	outcome = outcomeOK
	return an, nil
}

func noResponse(cause error) error {
	return &apperror.AppError{Err: apperror.ErrUpstream, Message: "No response from analysis service", Cause: cause}
}
