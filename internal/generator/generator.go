// Package generator drafts reply candidates for matched posts using a
// language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/generator/providers"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// ErrGenerationUnavailable means no language model is configured.
var ErrGenerationUnavailable = providers.ErrUnavailable

// ErrGenerationTimeout means the model did not answer within the budget.
var ErrGenerationTimeout = errors.New("candidate generation timed out")

// DisabledMessage is returned as the only candidate when generation is
// unavailable.
const DisabledMessage = "[reply generation disabled: no language model credentials configured]"

// Provider defines the interface for LLM providers
type Provider interface {
	Generate(ctx context.Context, prompt string, count int) ([]string, error)
}

// Request carries everything the prompt is built from.
type Request struct {
	Post       types.MatchedPost
	Snippets   []types.ContextSnippet
	Guidelines string
	Voice      string
	Count      int
}

// Generator builds prompts and post-processes model output.
type Generator struct {
	provider Provider
	timeout  time.Duration
	log      zerolog.Logger
}

// New creates a generator around provider. timeout bounds one model call.
func New(provider Provider, timeout time.Duration, log zerolog.Logger) *Generator {
	return &Generator{
		provider: provider,
		timeout:  timeout,
		log:      log.With().Str("component", "generator").Logger(),
	}
}

// FromConfig creates a generator with the appropriate provider based on config.
// cacheDir is only used when LLM caching is enabled.
func FromConfig(cfg config.GenerationConfig, debug config.DebugConfig, cacheDir string, log zerolog.Logger) (*Generator, error) {
	var provider Provider

	switch cfg.Provider {
	case config.ProviderAnthropic:
		opts := providers.AnthropicOptions{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}
		if debug.CacheLLM {
			opts.CacheDir = cacheDir
		}
		provider = providers.NewAnthropicProvider(opts, log)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}

	return New(provider, config.Seconds(cfg.TimeoutSeconds), log), nil
}

// Generate returns up to req.Count distinct reply drafts.
//
// When the provider is unavailable it returns []string{DisabledMessage}
// and no error. A timeout returns ErrGenerationTimeout and is not
// retried. Fewer than Count drafts is not an error.
func (g *Generator) Generate(ctx context.Context, req Request) ([]string, error) {
	if req.Count < 1 {
		req.Count = 1
	}
	prompt := BuildPrompt(req)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.provider.Generate(ctx, prompt, req.Count)
	switch {
	case errors.Is(err, ErrGenerationUnavailable):
		return []string{DisabledMessage}, nil
	case err != nil && ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
	case err != nil:
		return nil, fmt.Errorf("failed to generate candidates: %w", err)
	}

	out := clean(raw, req.Count)
	if len(out) < req.Count {
		g.log.Warn().
			Str("post", req.Post.ExternalID).
			Int("requested", req.Count).
			Int("received", len(out)).
			Msg("model returned fewer candidates than requested")
	}
	return out, nil
}

// IsPlaceholder reports whether text is the disabled-generation sentinel.
func IsPlaceholder(text string) bool {
	return text == DisabledMessage
}

// clean trims drafts, drops empties and near-duplicates, and caps the count.
func clean(raw []string, limit int) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, min(len(raw), limit))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		key := strings.ToLower(strings.Join(strings.Fields(s), " "))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
