// Package reddit fetches subreddit listings and posting rules.
package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// TransientFetchError reports a network or rate-limit failure. It is
// retried by the next tick, never synchronously.
type TransientFetchError struct {
	Subreddit  string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch r/%s: status %d: %v", e.Subreddit, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch r/%s: %v", e.Subreddit, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientFetchError.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	UserAgent         string
	Limit             int
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client reads Reddit's public JSON endpoints.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	limit   int
	log     zerolog.Logger
}

// NewClient creates a Reddit API client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.reddit.com"
	}
	if opts.Limit <= 0 {
		opts.Limit = 25
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	return &Client{
		http:    c,
		limiter: limiter,
		limit:   opts.Limit,
		log:     log.With().Str("component", "reddit").Logger(),
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string      `json:"kind"`
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// RecentPosts returns the newest posts of subreddit in Reddit's order.
func (c *Client) RecentPosts(ctx context.Context, subreddit string) ([]types.RawPost, error) {
	sub := types.NormalizeSubreddit(subreddit)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransientFetchError{Subreddit: sub, Err: err}
	}

	var out listing
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("sub", sub).
		SetQueryParams(map[string]string{
			"limit":    fmt.Sprint(c.limit),
			"raw_json": "1",
		}).
		SetResult(&out).
		Get("/r/{sub}/new.json")
	if err != nil {
		return nil, &TransientFetchError{Subreddit: sub, Err: err}
	}
	if resp.IsError() {
		err := fmt.Errorf("%s", http.StatusText(resp.StatusCode()))
		if transientStatus(resp.StatusCode()) {
			return nil, &TransientFetchError{Subreddit: sub, StatusCode: resp.StatusCode(), Err: err}
		}
		return nil, fmt.Errorf("fetch r/%s: status %d: %w", sub, resp.StatusCode(), err)
	}

	posts := make([]types.RawPost, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		p := child.Data
		if child.Kind != "t3" || p.ID == "" || p.Stickied {
			continue
		}
		posts = append(posts, types.RawPost{
			ID:        p.ID,
			Subreddit: sub,
			Title:     p.Title,
			Body:      p.Selftext,
			Author:    p.Author,
			Permalink: c.absolute(p.Permalink),
			CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
		})
	}

	c.log.Debug().Str("subreddit", sub).Int("posts", len(posts)).Msg("fetched listing")
	return posts, nil
}

type rulesResponse struct {
	Rules []struct {
		ShortName   string `json:"short_name"`
		Description string `json:"description"`
	} `json:"rules"`
}

// Guidelines returns the subreddit's rules as a numbered list. It is
// best-effort and returns "" on any failure.
func (c *Client) Guidelines(ctx context.Context, subreddit string) string {
	sub := types.NormalizeSubreddit(subreddit)
	if err := c.limiter.Wait(ctx); err != nil {
		return ""
	}

	var out rulesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("sub", sub).
		SetQueryParam("raw_json", "1").
		SetResult(&out).
		Get("/r/{sub}/about/rules.json")
	if err != nil || resp.IsError() {
		c.log.Warn().Err(err).Str("subreddit", sub).Msg("could not fetch subreddit rules")
		return ""
	}
	return formatRules(out)
}

// formatRules renders rules as "1. name: description" lines.
func formatRules(r rulesResponse) string {
	var sb strings.Builder
	for i, rule := range r.Rules {
		fmt.Fprintf(&sb, "%d. %s", i+1, strings.TrimSpace(rule.ShortName))
		if d := strings.Join(strings.Fields(rule.Description), " "); d != "" {
			sb.WriteString(": " + d)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *Client) absolute(permalink string) string {
	if permalink == "" || strings.HasPrefix(permalink, "http") {
		return permalink
	}
	return "https://www.reddit.com" + permalink
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
