package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

// Client is a single text-completion call against a chat model.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options configures a langchaingo-backed client.
type Options struct {
	Provider    string  // "openai" or "anthropic"
	APIKey      string
	Model       string
	Temperature float64
	BaseURL     string // optional, openai-compatible endpoints

	// RequestsPerSecond caps outbound model calls. Zero disables limiting.
	RequestsPerSecond float64
}

// LangchainClient implements Client on top of langchaingo chat models.
type LangchainClient struct {
	llm         llms.Model
	temperature float64
	limiter     *rate.Limiter
}

// NewLangchainClient builds a model client for the configured provider.
func NewLangchainClient(opts Options) (*LangchainClient, error) {
	var model llms.Model
	var err error

	switch opts.Provider {
	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(opts.APIKey),
			anthropic.WithModel(opts.Model),
		)
	case "openai", "":
		oaiOpts := []openai.Option{
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			oaiOpts = append(oaiOpts, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(oaiOpts...)
	default:
		return nil, fmt.Errorf("unknown model provider %q", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", opts.Provider, err)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &LangchainClient{
		llm:         model,
		temperature: opts.Temperature,
		limiter:     limiter,
	}, nil
}

// Complete sends a system + user prompt pair and returns the raw text of
// the first choice.
func (c *LangchainClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt),
	}, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
