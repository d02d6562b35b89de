package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Generator against the Gemini API. Grounded calls
// enable the Google Search tool.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
}

// NewGeminiClient constructs a GeminiClient if the supplied configuration is valid.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrDisabled
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		limiter:     newLimiter(cfg.RequestsPerMinute),
	}, nil
}

// Name implements Generator.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Model implements Generator.
func (c *GeminiClient) Model() string { return c.model }

// Grounding implements Generator.
func (c *GeminiClient) Grounding() bool { return true }

func (c *GeminiClient) generateConfig(grounded bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// Generate implements Generator.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, grounded bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.generateConfig(grounded))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini empty response")
	}
	logrus.WithFields(logrus.Fields{
		"model":    c.model,
		"grounded": grounded,
		"chars":    len(text),
	}).Debug("gemini generation finished")
	return text, nil
}

// Stream implements Generator.
func (c *GeminiClient) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.limiter.Wait(ctx); err != nil {
			yield("", err)
			return
		}
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), c.generateConfig(false)) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
