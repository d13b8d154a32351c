// Package llm provides the text completion capability used for classification
// and translation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/config"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Options tune a single completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Completer produces raw text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client is a Completer backed by a langchaingo model.
type Client struct {
	model    llms.Model
	provider string
	name     string
}

// New creates a Client for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "googleai":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return NewWithModel(model, cfg.Provider, cfg.Model), nil
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(model llms.Model, provider, name string) *Client {
	return &Client{model: model, provider: provider, name: name}
}

// Complete runs one completion. Transport failures and empty output are
// returned as errors with the completion reason.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, callOpts...)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("%s %s completion: %w", c.provider, c.name, err), errorsx.ReasonCompletion)
	}
	if strings.TrimSpace(out) == "" {
		return "", errorsx.Wrap(ErrEmptyCompletion, errorsx.ReasonCompletion)
	}
	return out, nil
}
