package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/time/rate"
)

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Generator is the generative-language boundary used by the analysis pipeline.
type Generator interface {
	// Name identifies the provider.
	Name() string
	// Model is the model every call is sent to.
	Model() string
	// Grounding reports whether grounded calls consult live web search.
	Grounding() bool
	// Generate runs one non-streaming call and returns the response text.
	Generate(ctx context.Context, prompt string, grounded bool) (string, error)
	// Stream runs one streaming call. The sequence yields text fragments in
	// arrival order and ends after the first error.
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Config holds provider configuration parameters.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
}

// ErrDisabled is returned when the selected provider has no credentials.
var ErrDisabled = errors.New("ai provider disabled: no api key configured")

// New constructs the generator selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		client, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
}


// NormalizeJSONBlock strips markdown code fences and surrounding prose from a
// model response and returns the outermost JSON object text.
func NormalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}
