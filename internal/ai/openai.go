package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAIClient implements Generator against any OpenAI-compatible chat
// completions endpoint. It cannot ground calls in web search.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
}

// NewOpenAIClient constructs an OpenAIClient if the supplied configuration is valid.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrDisabled
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: openAITemperature(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		limiter:     newLimiter(cfg.RequestsPerMinute),
	}, nil
}

// openAITemperature maps 0 to the smallest positive value, since the request
// omits a zero temperature and the server would apply its own default.
func openAITemperature(value float64) float32 {
	if value <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(value)
}

// Name implements Generator.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Model implements Generator.
func (c *OpenAIClient) Model() string { return c.model }

// Grounding implements Generator.
func (c *OpenAIClient) Grounding() bool { return false }

func (c *OpenAIClient) request(prompt string, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		Stream:      stream,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	return req
}

// Generate implements Generator. The grounded flag is accepted for interface
// parity and has no effect.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, grounded bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if grounded {
		logrus.WithField("model", c.model).Debug("openai provider has no search grounding; sending plain request")
	}
	resp, err := c.client.CreateChatCompletion(ctx, c.request(prompt, false))
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai empty response")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("openai empty content")
	}
	return content, nil
}

// Stream implements Generator.
func (c *OpenAIClient) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := c.limiter.Wait(ctx); err != nil {
			yield("", err)
			return
		}
		stream, err := c.client.CreateChatCompletionStream(ctx, c.request(prompt, true))
		if err != nil {
			yield("", fmt.Errorf("openai stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai stream: %w", err))
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}
}
