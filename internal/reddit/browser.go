package reddit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	browseropts "github.com/ibeckermayer/replyscout/internal/browser"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// BrowserFetcher reads subreddit listings by rendering old.reddit.com in
// headless Chrome. It is a fallback for hosts where the JSON API is
// blocked; it does not see post bodies.
type BrowserFetcher struct {
	headless bool
	baseURL  string
	timeout  time.Duration
	limit    int
	log      zerolog.Logger
}

// NewBrowserFetcher creates a browser-backed fetcher.
func NewBrowserFetcher(headless bool, limit int, timeout time.Duration, log zerolog.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &BrowserFetcher{
		headless: headless,
		baseURL:  "https://old.reddit.com",
		timeout:  timeout,
		limit:    limit,
		log:      log.With().Str("component", "reddit-browser").Logger(),
	}
}

// rawThing represents the raw data extracted from the DOM via JavaScript
type rawThing struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
	Stickied  bool   `json:"stickied"`
}

// extractJS collects every post thing on the listing page.
var extractJS = fmt.Sprintf(`
	(function() {
		const things = document.querySelectorAll(%q);
		const results = [];
		things.forEach(el => {
			try {
				results.push({
					id: (el.getAttribute('data-fullname') || '').replace('t3_', ''),
					title: el.querySelector(%q)?.textContent || '',
					author: el.getAttribute('data-author') || '',
					permalink: el.getAttribute('data-permalink') || '',
					timestamp: el.getAttribute('data-timestamp') || '',
					stickied: el.classList.contains('stickied')
				});
			} catch (e) {
				console.error('Error extracting post:', e);
			}
		});
		return results;
	})()
`, PostThing, PostTitle)

// RecentPosts renders the subreddit's "new" listing and extracts posts.
func (b *BrowserFetcher) RecentPosts(ctx context.Context, subreddit string) ([]types.RawPost, error) {
	sub := types.NormalizeSubreddit(subreddit)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browseropts.Options(b.headless)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, b.timeout)
	defer timeoutCancel()

	var things []rawThing
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(fmt.Sprintf("%s/r/%s/new/", b.baseURL, sub)),
		chromedp.WaitVisible(WaitForListing, chromedp.ByQuery),
		chromedp.Evaluate(extractJS, &things),
	)
	if err != nil {
		return nil, &TransientFetchError{Subreddit: sub, Err: fmt.Errorf("failed to render listing: %w", err)}
	}

	posts := thingsToPosts(sub, things, b.limit)
	b.log.Debug().Str("subreddit", sub).Int("posts", len(posts)).Msg("rendered listing")
	return posts, nil
}

// Guidelines is not available through the rendered listing.
func (b *BrowserFetcher) Guidelines(ctx context.Context, subreddit string) string {
	return ""
}

func thingsToPosts(sub string, things []rawThing, limit int) []types.RawPost {
	posts := make([]types.RawPost, 0, len(things))
	for _, t := range things {
		if t.ID == "" || t.Stickied {
			continue
		}
		var created time.Time
		if ms, err := strconv.ParseInt(t.Timestamp, 10, 64); err == nil {
			created = time.UnixMilli(ms).UTC()
		}
		permalink := t.Permalink
		if permalink != "" && permalink[0] == '/' {
			permalink = "https://www.reddit.com" + permalink
		}
		posts = append(posts, types.RawPost{
			ID:        t.ID,
			Subreddit: sub,
			Title:     t.Title,
			Author:    t.Author,
			Permalink: permalink,
			CreatedAt: created,
		})
		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts
}
