package types

import (
	"strings"
	"time"
)

// DefaultIntervalMinutes is used when a schedule has no positive interval.
const DefaultIntervalMinutes = 360

// ScanSchedule describes when a configuration may be scanned.
// Hours are inclusive; a window with start > end wraps past midnight.
// Days use ISO numbering, 1 = Monday through 7 = Sunday.
type ScanSchedule struct {
	IntervalMinutes int        `json:"interval_minutes" yaml:"interval_minutes"`
	ActiveStartHour int        `json:"active_start_hour" yaml:"active_start_hour"`
	ActiveEndHour   int        `json:"active_end_hour" yaml:"active_end_hour"`
	ActiveDays      []int      `json:"active_days" yaml:"active_days"`
	LastScanAt      *time.Time `json:"last_scan_at,omitempty" yaml:"-"`
}

// Interval returns the scan interval, falling back to the default.
func (s ScanSchedule) Interval() time.Duration {
	m := s.IntervalMinutes
	if m <= 0 {
		m = DefaultIntervalMinutes
	}
	return time.Duration(m) * time.Minute
}

// KeywordRule is either a literal substring or a regular expression,
// both matched case-insensitively.
type KeywordRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Regex   bool   `json:"regex,omitempty" yaml:"regex,omitempty"`
}

func (r KeywordRule) String() string {
	if r.Regex {
		return "/" + r.Pattern + "/"
	}
	return r.Pattern
}

// Configuration is a client's monitoring policy.
type Configuration struct {
	ID         int64         `json:"id"`
	ClientID   int64         `json:"client_id"`
	Name       string        `json:"name"`
	Subreddits []string      `json:"subreddits"`
	Keywords   []KeywordRule `json:"keywords"`
	Voice      string        `json:"voice,omitempty"`
	Active     bool          `json:"active"`
	Schedule   ScanSchedule  `json:"schedule"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RawPost is a post as returned by the Reddit listing.
type RawPost struct {
	ID        string    `json:"id"`
	Subreddit string    `json:"subreddit"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the post's dedup key.
func (p RawPost) Key() DedupKey {
	return DedupKey{Subreddit: p.Subreddit, ExternalID: p.ID}
}

// DedupKey identifies a post across scans.
type DedupKey struct {
	Subreddit  string
	ExternalID string
}

// MatchedPost is a post that satisfied at least one keyword rule and
// was not seen before.
type MatchedPost struct {
	ID              int64     `json:"id"`
	ClientID        int64     `json:"client_id"`
	ConfigurationID int64     `json:"configuration_id"`
	Subreddit       string    `json:"subreddit"`
	ExternalID      string    `json:"external_id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Author          string    `json:"author"`
	Permalink       string    `json:"permalink"`
	PostCreatedAt   time.Time `json:"post_created_at"`
	MatchedKeywords []string  `json:"matched_keywords"`
	FoundAt         time.Time `json:"found_at"`
}

// Key returns the post's dedup key.
func (p MatchedPost) Key() DedupKey {
	return DedupKey{Subreddit: p.Subreddit, ExternalID: p.ExternalID}
}

// SourceType names where a context snippet came from.
type SourceType string

const (
	SourceSearch SourceType = "search"
	SourceVideo  SourceType = "video"
)

// ContextSnippet is transient enrichment attached to a post before
// candidate generation. It is never persisted.
type ContextSnippet struct {
	Source SourceType `json:"source"`
	Title  string     `json:"title"`
	URL    string     `json:"url"`
}

// Dimension is one axis of the quality score.
type Dimension string

const (
	Relevance    Dimension = "relevance"
	Readability  Dimension = "readability"
	Authenticity Dimension = "authenticity"
	Helpfulness  Dimension = "helpfulness"
	Compliance   Dimension = "compliance"
)

// Dimensions lists every scoring dimension in reporting order.
var Dimensions = []Dimension{Relevance, Readability, Authenticity, Helpfulness, Compliance}

// Score is the result of scoring one candidate.
type Score struct {
	Total     int               `json:"score"`
	Grade     string            `json:"grade"`
	Breakdown map[Dimension]int `json:"breakdown"`
	Feedback  []string          `json:"feedback"`
}

// ResponseCandidate is one generated reply draft with its score.
type ResponseCandidate struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Text      string    `json:"text"`
	Score     Score     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanStatus is the outcome of one configuration within a tick.
type ScanStatus string

const (
	StatusSkipped ScanStatus = "SKIPPED"
	StatusScanned ScanStatus = "SCANNED"
)

// PostResult summarizes one new post for reporting.
type PostResult struct {
	PostID     int64  `json:"post_id"`
	Subreddit  string `json:"subreddit"`
	Title      string `json:"title"`
	Permalink  string `json:"permalink"`
	Candidates int    `json:"candidates"`
	BestText   string `json:"best_text,omitempty"`
	BestScore  int    `json:"best_score,omitempty"`
	BestGrade  string `json:"best_grade,omitempty"`
}

// ConfigurationScanSummary is returned for every configuration visited
// by a tick or a manual scan.
type ConfigurationScanSummary struct {
	ConfigurationID int64        `json:"configuration_id"`
	Status          ScanStatus   `json:"status"`
	NewPosts        int          `json:"new_posts"`
	NewCandidates   int          `json:"new_candidates"`
	Errors          []string     `json:"errors"`
	Posts           []PostResult `json:"posts,omitempty"`
}

// NormalizeSubreddit lowercases a subreddit name and strips an "r/" prefix.
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if len(name) > 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return strings.ToLower(name)
}
