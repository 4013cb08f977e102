package report

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/replyscout/internal/types"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestBuild(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	summaries := []types.ConfigurationScanSummary{
		{ConfigurationID: 1, Status: types.StatusSkipped},
		{
			ConfigurationID: 2,
			Status:          types.StatusScanned,
			NewPosts:        2,
			NewCandidates:   3,
			Errors:          []string{"r/broken: status 429"},
			Posts: []types.PostResult{
				{Subreddit: "golang", Title: "low", Permalink: "https://reddit.com/low", Candidates: 1, BestText: "meh", BestScore: 40, BestGrade: "F"},
				{Subreddit: "golang", Title: "<b>high</b>", Permalink: "https://reddit.com/high", Candidates: 2, BestText: "great reply", BestScore: 91, BestGrade: "A"},
			},
		},
		{ConfigurationID: 3, Status: types.StatusScanned},
	}

	r, err := b.Build(summaries, now)
	require.NoError(t, err)

	assert.Equal(t, 2, r.PostCount)
	assert.Equal(t, "ReplyScout: 2 new posts, Oct 19 12:00", r.Subject)

	assert.Contains(t, r.HTMLBody, "Configuration #2")
	assert.NotContains(t, r.HTMLBody, "Configuration #3")
	assert.Contains(t, r.HTMLBody, "&lt;b&gt;high&lt;/b&gt;")
	assert.Contains(t, r.HTMLBody, "r/broken: status 429")
	assert.Contains(t, r.HTMLBody, "2 configurations scanned")

	high := strings.Index(r.PlainBody, "great reply")
	low := strings.Index(r.PlainBody, "meh")
	require.True(t, high >= 0 && low >= 0)
	assert.Less(t, high, low, "best scoring post comes first")
	assert.Contains(t, r.PlainBody, "Best reply (91, A): great reply")
}

func TestBuild_Empty(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	_, err = b.Build([]types.ConfigurationScanSummary{{ConfigurationID: 1, Status: types.StatusScanned}}, now)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))

	// "é" occupies bytes 3 and 4; the cut backs off to byte 3.
	got := truncate("abcédefghij", 7)
	assert.Equal(t, "abc...", got)
	assert.True(t, utf8.ValidString(got))
}
