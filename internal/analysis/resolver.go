package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"search-term-analyzer/internal/ai"
	"search-term-analyzer/internal/site"
)

const maxExcerptChars = 6000

// Generator issues non-streaming generation calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, grounded bool) (string, error)
	Grounding() bool
}

// PageReader returns the readable text of a web page.
type PageReader interface {
	ReadText(ctx context.Context, pageURL string) (string, error)
}

// Resolver infers a BusinessContext from a website.
type Resolver struct {
	gen     Generator
	pages   PageReader
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewResolver builds a resolver. pages is only used when gen cannot ground its
// calls in web search and may be nil. A zero timeout leaves the call unbounded.
func NewResolver(gen Generator, pages PageReader, timeout time.Duration, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{gen: gen, pages: pages, timeout: timeout, log: log}
}

// Resolve asks the generator for the location, competitors and services of the
// business behind websiteURL.
func (r *Resolver) Resolve(ctx context.Context, websiteURL string) (BusinessContext, error) {
	profile, err := site.Parse(websiteURL)
	if err != nil {
		return BusinessContext{}, wrap(ErrConfig, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	excerpt := ""
	if !r.gen.Grounding() && r.pages != nil {
		text, err := r.pages.ReadText(ctx, profile.URL)
		if err != nil {
			r.log.WithError(err).WithField("url", profile.URL).Warn("website text unavailable; resolving without excerpt")
		} else {
			excerpt = truncateRunes(text, maxExcerptChars)
		}
	}

	start := time.Now()
	text, err := r.gen.Generate(ctx, buildContextPrompt(profile, excerpt), true)
	if err != nil {
		return BusinessContext{}, wrap(ErrUpstream, err)
	}
	bc, err := ParseBusinessContext(text)
	if err != nil {
		r.log.WithError(err).WithField("response", truncate(text, 300)).Warn("business context response not understood")
		return BusinessContext{}, wrap(ErrUpstream, err)
	}

	r.log.WithFields(logrus.Fields{
		"url":         profile.URL,
		"location":    bc.Location,
		"competitors": len(bc.Competitors),
		"services":    len(bc.Services),
		"duration":    time.Since(start).Round(time.Millisecond),
	}).Info("business context resolved")
	return bc, nil
}

func buildContextPrompt(profile site.Profile, excerpt string) string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "Research the business that owns the website %s", profile.URL)
	if profile.Brand != "" {
		fmt.Fprintf(builder, " (brand: %s)", profile.Brand)
	}
	builder.WriteString(".\n")
	builder.WriteString("Use web search to determine:\n")
	builder.WriteString("- location: the primary city and region or country the business serves, for example \"Austin, Texas\".\n")
	builder.WriteString("- competitors: up to 10 brand or business names of direct local competitors offering the same services in that location. Never list the business itself.\n")
	builder.WriteString("- services: the services or products the business offers, as short noun phrases.\n")
	if excerpt != "" {
		builder.WriteString("\nText extracted from the website:\n\"\"\"\n")
		builder.WriteString(excerpt)
		builder.WriteString("\n\"\"\"\n")
	}
	builder.WriteString("\nRespond with a single JSON object and nothing else, shaped exactly like:\n")
	builder.WriteString(`{"location": "", "competitors": [""], "services": [""]}`)
	builder.WriteString("\nUse an empty string or empty array when something cannot be determined.\n")
	return builder.String()
}

// ParseBusinessContext decodes a context response. Markdown fences and prose
// around the object are ignored. Missing keys default to empty values; values
// of the wrong type are coerced or dropped.
func ParseBusinessContext(text string) (BusinessContext, error) {
	block := ai.NormalizeJSONBlock(text)
	if block == "" {
		return BusinessContext{}, errors.New("empty context response")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return BusinessContext{}, fmt.Errorf("parse context response: %w", err)
	}
	if raw == nil {
		return BusinessContext{}, errors.New("context response is not a json object")
	}
	return BusinessContext{
		Location:    coerceString(raw["location"]),
		Competitors: coerceList(raw["competitors"]),
		Services:    coerceList(raw["services"]),
	}, nil
}

func coerceString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func coerceList(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if s := coerceString(item); s != "" {
				out = appendUnique(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = appendUnique(out, s)
			}
		}
	}
	return out
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if strings.EqualFold(existing, value) {
			return values
		}
	}
	return append(values, value)
}

func truncateRunes(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
