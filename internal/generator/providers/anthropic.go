package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/store"
)

// AnthropicOptions configures an AnthropicProvider.
type AnthropicOptions struct {
	APIKey    string
	Model     string
	MaxTokens int
	// CacheDir, when set, receives every prompt/response exchange.
	CacheDir string
}

// AnthropicProvider generates reply candidates with Anthropic's Claude API
type AnthropicProvider struct {
	client    *anthropic.Client
	provider  string // e.g. "anthropic"
	model     string
	maxTokens int
	enabled   bool
	cacheDir  string
	log       zerolog.Logger
}

// NewAnthropicProvider creates a new Anthropic provider. Extra request
// options are appended after the API key.
func NewAnthropicProvider(o AnthropicOptions, log zerolog.Logger, opts ...option.RequestOption) *AnthropicProvider {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	// Timeouts are surfaced to the caller, never retried here.
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(reqOpts...)

	return &AnthropicProvider{
		client:    &client,
		provider:  config.ProviderAnthropic,
		model:     o.Model,
		maxTokens: o.MaxTokens,
		enabled:   o.APIKey != "",
		cacheDir:  o.CacheDir,
		log:       log.With().Str("provider", config.ProviderAnthropic).Logger(),
	}
}

// Generate asks Claude for count reply drafts in one call.
func (c *AnthropicProvider) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	if !c.enabled {
		return nil, ErrUnavailable
	}

	// Use prefilling to ensure Claude continues with valid JSON (starting after the "[")
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("[")),
		},
	})
	if err != nil {
		c.cache(prompt, "", err)
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	// Extract text from response
	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	c.cache(prompt, responseText, nil)

	if responseText == "" {
		return nil, fmt.Errorf("Claude returned empty response")
	}

	c.log.Debug().
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Int("requested", count).
		Msg("generated candidates")

	// Prepend "[" since we used prefilling - the response continues from after the "["
	return ParseCandidates("[" + responseText)
}

// cache stores the prompt/response for debugging
func (c *AnthropicProvider) cache(prompt, response string, callErr error) {
	if c.cacheDir == "" {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  c.provider,
		Model:     c.model,
		Prompt:    prompt,
		Response:  response,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	path, err := store.SaveLLMExchange(c.cacheDir, ex)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to cache LLM exchange")
		return
	}
	c.log.Debug().Str("path", path).Msg("cached LLM exchange")
}
