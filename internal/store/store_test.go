package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/replyscout/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedConfiguration(t *testing.T, s *Store) *types.Configuration {
	t.Helper()
	ctx := context.Background()

	clientID, err := s.CreateClient(ctx, "acme")
	require.NoError(t, err)

	c := &types.Configuration{
		ClientID:   clientID,
		Name:       "support",
		Subreddits: []string{"golang", "rust"},
		Keywords:   []types.KeywordRule{{Pattern: "help"}, {Pattern: `dead\s*lock`, Regex: true}},
		Voice:      "friendly engineer",
		Active:     true,
		Schedule: types.ScanSchedule{
			IntervalMinutes: 120,
			ActiveStartHour: 22,
			ActiveEndHour:   6,
			ActiveDays:      []int{1, 3, 5},
		},
	}
	_, err = s.CreateConfiguration(ctx, c)
	require.NoError(t, err)
	require.NotZero(t, c.ID)
	return c
}

func TestCreateClient_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateClient(ctx, "acme")
	require.NoError(t, err)
	second, err := s.CreateClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.CreateClient(ctx, "globex")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestConfiguration_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := seedConfiguration(t, s)

	got, err := s.GetConfiguration(ctx, want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.ClientID, got.ClientID)
	assert.Equal(t, want.Subreddits, got.Subreddits)
	assert.Equal(t, want.Keywords, got.Keywords)
	assert.Equal(t, want.Voice, got.Voice)
	assert.Equal(t, want.Schedule.ActiveDays, got.Schedule.ActiveDays)
	assert.Equal(t, 22, got.Schedule.ActiveStartHour)
	assert.Equal(t, 6, got.Schedule.ActiveEndHour)
	assert.Nil(t, got.Schedule.LastScanAt)

	_, err = s.GetConfiguration(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestActiveConfigurations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	active := seedConfiguration(t, s)

	inactive := &types.Configuration{ClientID: active.ClientID, Name: "paused", Subreddits: []string{"go"}, Active: false}
	_, err := s.CreateConfiguration(ctx, inactive)
	require.NoError(t, err)

	configs, err := s.ActiveConfigurations(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, active.ID, configs[0].ID)

	all, err := s.ListConfigurations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarkScanned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedConfiguration(t, s)

	at := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	require.NoError(t, s.MarkScanned(ctx, c.ID, at))

	got, err := s.GetConfiguration(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Schedule.LastScanAt)
	assert.True(t, at.Equal(*got.Schedule.LastScanAt))

	assert.True(t, errors.Is(s.MarkScanned(ctx, 999, at), ErrNotFound))
}

func TestPersistMatchedPost_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedConfiguration(t, s)

	post := &types.MatchedPost{
		ClientID:        c.ClientID,
		ConfigurationID: c.ID,
		Subreddit:       "golang",
		ExternalID:      "abc123",
		Title:           "need help with X",
		Permalink:       "https://www.reddit.com/r/golang/comments/abc123/",
		PostCreatedAt:   time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		MatchedKeywords: []string{"help"},
	}
	id, created, err := s.PersistMatchedPost(ctx, post)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, id)

	dup := *post
	dup.ID = 0
	dup.Title = "edited title"
	again, created, err := s.PersistMatchedPost(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	keys, err := s.KnownKeys(ctx, c.ClientID, "golang")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	_, ok := keys[types.DedupKey{Subreddit: "golang", ExternalID: "abc123"}]
	assert.True(t, ok)

	keys, err = s.KnownKeys(ctx, c.ClientID, "rust")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPersistCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedConfiguration(t, s)

	post := &types.MatchedPost{ClientID: c.ClientID, ConfigurationID: c.ID, Subreddit: "golang", ExternalID: "p1", Title: "t"}
	_, _, err := s.PersistMatchedPost(ctx, post)
	require.NoError(t, err)

	low := &types.ResponseCandidate{PostID: post.ID, Text: "meh", Score: types.Score{
		Total: 40, Grade: "F",
		Breakdown: map[types.Dimension]int{types.Relevance: 10},
		Feedback:  []string{"Relevance: low"},
	}}
	high := &types.ResponseCandidate{PostID: post.ID, Text: "great", Score: types.Score{
		Total: 91, Grade: "A",
		Breakdown: map[types.Dimension]int{types.Relevance: 95},
	}}
	_, err = s.PersistCandidate(ctx, low)
	require.NoError(t, err)
	_, err = s.PersistCandidate(ctx, high)
	require.NoError(t, err)

	got, err := s.CandidatesForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "great", got[0].Text)
	assert.Equal(t, 95, got[0].Score.Breakdown[types.Relevance])
	assert.Equal(t, []string{"Relevance: low"}, got[1].Score.Feedback)
}

func TestRebind(t *testing.T) {
	pg := &Store{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPersistenceErrorWrapping(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.CreateClient(context.Background(), "acme")
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "create client", pe.Op)
}

func TestStepCache(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveStepOutput(dir, StepMatched, "cfg-1", []string{"a", "b"})
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = LatestStepFile(dir, StepReports)
	assert.Error(t, err)

	html, err := SaveTextOutput(dir, StepReports, "<html></html>", ".html")
	require.NoError(t, err)
	latest, err := LatestStepFile(dir, StepReports)
	require.NoError(t, err)
	assert.Equal(t, html, latest)

	data, err := os.ReadFile(latest)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestSaveLLMExchange(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveLLMExchange(dir, LLMExchange{Provider: "anthropic", Prompt: "p", Response: "r"})
	require.NoError(t, err)
	assert.Equal(t, LLMCacheDir(dir), filepath.Dir(path))
}

func TestClaimScan_Lease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	ctx := context.Background()
	c := seedConfiguration(t, a)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute

	ok, err := a.ClaimScan(ctx, c.ID, now, ttl)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second handle on the same file sees the lease.
	ok, err = b.ClaimScan(ctx, c.ID, now.Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.False(t, ok)

	// An expired lease can be taken over.
	ok, err = b.ClaimScan(ctx, c.ID, now.Add(ttl+time.Second), ttl)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.MarkScanned(ctx, c.ID, now))
	ok, err = a.ClaimScan(ctx, c.ID, now, ttl)
	require.NoError(t, err)
	assert.True(t, ok, "MarkScanned releases the lease")

	require.NoError(t, a.ReleaseScan(ctx, c.ID))
	ok, err = b.ClaimScan(ctx, c.ID, now, ttl)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := a.GetConfiguration(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Schedule.LastScanAt)
	assert.True(t, now.Equal(*got.Schedule.LastScanAt))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?_pragma=busy_timeout(5000)", sqliteDSN("sqlite", "/tmp/a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=busy_timeout(5000)", sqliteDSN("sqlite", "file:a.db?mode=rwc"))
	assert.Equal(t, ":memory:", sqliteDSN("sqlite", ":memory:"))
	assert.Equal(t, "postgres://x", sqliteDSN("postgres", "postgres://x"))
}
