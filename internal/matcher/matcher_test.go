package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/replyscout/internal/types"
)

func posts() []types.RawPost {
	return []types.RawPost{
		{ID: "a1", Subreddit: "golang", Title: "Need HELP with channels", Body: "deadlock everywhere"},
		{ID: "a2", Subreddit: "golang", Title: "Show off my CLI", Body: "built with cobra"},
		{ID: "a3", Subreddit: "golang", Title: "Generics question", Body: "can someone help me?"},
		{ID: "a4", Subreddit: "golang", Title: "Weekly thread", Body: ""},
	}
}

func mustCompile(t *testing.T, rules ...types.KeywordRule) []Rule {
	t.Helper()
	compiled, err := Compile(rules)
	require.NoError(t, err)
	return compiled
}

func TestFindNewMatches_LiteralCaseInsensitive(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "help"})
	got := FindNewMatches(posts(), rules, KnownKeys{})

	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ExternalID)
	assert.Equal(t, "a3", got[1].ExternalID)
	assert.Equal(t, []string{"help"}, got[0].MatchedKeywords)
}

func TestFindNewMatches_AnyRuleAndRecordsHits(t *testing.T) {
	rules := mustCompile(t,
		types.KeywordRule{Pattern: "cobra"},
		types.KeywordRule{Pattern: `dead\s*lock`, Regex: true},
		types.KeywordRule{Pattern: "channels"},
	)
	got := FindNewMatches(posts(), rules, KnownKeys{})

	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ExternalID)
	assert.Equal(t, []string{`/dead\s*lock/`, "channels"}, got[0].MatchedKeywords)
	assert.Equal(t, "a2", got[1].ExternalID)
	assert.Equal(t, []string{"cobra"}, got[1].MatchedKeywords)
}

func TestFindNewMatches_EmptyRulesMatchNothing(t *testing.T) {
	assert.Empty(t, FindNewMatches(posts(), nil, KnownKeys{}))
	assert.Empty(t, FindNewMatches(posts(), []Rule{}, KnownKeys{}))
}

func TestFindNewMatches_SkipsKnown(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "help"})
	known := KnownKeys{}
	known.Add(types.DedupKey{Subreddit: "golang", ExternalID: "a1"})

	got := FindNewMatches(posts(), rules, known)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ExternalID)
}

func TestFindNewMatches_Idempotent(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "help"})
	known := KnownKeys{}

	first := FindNewMatches(posts(), rules, known)
	require.NotEmpty(t, first)
	for _, m := range first {
		known.Add(m.Key())
	}

	assert.Empty(t, FindNewMatches(posts(), rules, known))
}

func TestFindNewMatches_KeyIncludesSubreddit(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "help"})
	known := KnownKeys{}
	known.Add(types.DedupKey{Subreddit: "rust", ExternalID: "a1"})

	got := FindNewMatches(posts(), rules, known)
	assert.Len(t, got, 2)
}

func TestFindNewMatches_DuplicateInputReportedOnce(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "help"})
	in := append(posts(), posts()[0])

	got := FindNewMatches(in, rules, KnownKeys{})
	assert.Len(t, got, 2)
}

func TestFindNewMatches_TitleBodyJoinedWithSpace(t *testing.T) {
	rules := mustCompile(t, types.KeywordRule{Pattern: "question can"})
	got := FindNewMatches(posts(), rules, KnownKeys{})

	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ExternalID)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile([]types.KeywordRule{{Pattern: "(unclosed", Regex: true}})
	var ruleErr *RuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "(unclosed", ruleErr.Rule.Pattern)

	_, err = Compile([]types.KeywordRule{{Pattern: "  "}})
	assert.Error(t, err)
}

func TestParseRule(t *testing.T) {
	assert.Equal(t, types.KeywordRule{Pattern: "help"}, ParseRule("help"))
	assert.Equal(t, types.KeywordRule{Pattern: "need(s)? advice", Regex: true}, ParseRule("/need(s)? advice/"))
	assert.Equal(t, types.KeywordRule{Pattern: "/"}, ParseRule("/"))
}
