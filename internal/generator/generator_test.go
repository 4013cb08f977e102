package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/types"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	args := m.Called(ctx, prompt, count)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var testPost = types.MatchedPost{
	Subreddit:  "golang",
	ExternalID: "abc",
	Title:      "need help with X",
	Body:       "X keeps crashing when I do Y.",
}

func TestGenerate_CleansOutput(t *testing.T) {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.AnythingOfType("string"), 3).
		Return([]string{"  First  ", "", "first", "Second", "Third", "Fourth"}, nil)

	g := New(p, time.Second, zerolog.Nop())
	got, err := g.Generate(context.Background(), Request{Post: testPost, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second", "Third"}, got)
	p.AssertExpectations(t)
}

func TestGenerate_FewerThanRequested(t *testing.T) {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything, 3).Return([]string{"only one"}, nil)

	got, err := New(p, time.Second, zerolog.Nop()).Generate(context.Background(), Request{Post: testPost, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"only one"}, got)
}

func TestGenerate_UnavailableReturnsPlaceholder(t *testing.T) {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything, 2).Return(nil, ErrGenerationUnavailable)

	got, err := New(p, time.Second, zerolog.Nop()).Generate(context.Background(), Request{Post: testPost, Count: 2})
	require.NoError(t, err)
	require.Equal(t, []string{DisabledMessage}, got)
	assert.True(t, IsPlaceholder(got[0]))
}

func TestGenerate_TimeoutNotRetried(t *testing.T) {
	g := New(blockingProvider{}, 20*time.Millisecond, zerolog.Nop())
	got, err := g.Generate(context.Background(), Request{Post: testPost, Count: 2})
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrGenerationTimeout))
}

func TestGenerate_ProviderError(t *testing.T) {
	p := new(mockProvider)
	p.On("Generate", mock.Anything, mock.Anything, 1).Return(nil, errors.New("overloaded")).Once()

	_, err := New(p, time.Second, zerolog.Nop()).Generate(context.Background(), Request{Post: testPost, Count: 0})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrGenerationTimeout))
	p.AssertNumberOfCalls(t, "Generate", 1)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(Request{
		Post: testPost,
		Snippets: []types.ContextSnippet{
			{Source: types.SourceSearch, Title: "X docs", URL: "https://x.dev/docs"},
		},
		Guidelines: "1. No self-promotion",
		Voice:      "Calm, practical, a bit nerdy.",
		Count:      2,
	})

	assert.Contains(t, prompt, "Subreddit: r/golang")
	assert.Contains(t, prompt, "Title: need help with X")
	assert.Contains(t, prompt, "X keeps crashing")
	assert.Contains(t, prompt, "- [search] X docs (https://x.dev/docs)")
	assert.Contains(t, prompt, "1. No self-promotion")
	assert.Contains(t, prompt, "MUST follow these rules")
	assert.Contains(t, prompt, "Calm, practical, a bit nerdy.")
	assert.Contains(t, prompt, "Write 2 distinct replies")
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(Request{Post: types.MatchedPost{Subreddit: "go", Title: "t"}, Count: 1})
	assert.NotContains(t, prompt, "## Background")
	assert.NotContains(t, prompt, "## Subreddit Rules")
	assert.NotContains(t, prompt, "## Voice")
	assert.NotContains(t, prompt, "Body:")
}

func TestBuildPrompt_TruncatesLongBody(t *testing.T) {
	post := testPost
	post.Body = strings.Repeat("a", maxBodyChars*2)
	prompt := BuildPrompt(Request{Post: post, Count: 1})
	assert.Less(t, len(prompt), maxBodyChars*2)
}

func TestBuildPrompt_TruncatesOnCharacterBoundary(t *testing.T) {
	post := testPost
	// The two-byte "é" straddles the cut at maxBodyChars.
	post.Body = strings.Repeat("a", maxBodyChars-1) + "é" + strings.Repeat("b", 100)
	prompt := BuildPrompt(Request{Post: post, Count: 1})

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, strings.Repeat("a", maxBodyChars-1)+"...")
	assert.NotContains(t, prompt, "é")
}

func TestCutAtRune(t *testing.T) {
	assert.Equal(t, "short", cutAtRune("short", 10))
	assert.Equal(t, "ab", cutAtRune("abé", 3))
	assert.Equal(t, "abé", cutAtRune("abéd", 4))
	assert.Equal(t, "", cutAtRune("日本", 2))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	g, err := FromConfig(cfg.Generation, cfg.Debug, t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	// No API key: generation degrades to the placeholder.
	got, err := g.Generate(context.Background(), Request{Post: testPost, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{DisabledMessage}, got)

	cfg.Generation.Provider = "openai"
	_, err = FromConfig(cfg.Generation, cfg.Debug, "", zerolog.Nop())
	assert.Error(t, err)
}
