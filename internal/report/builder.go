// Package report renders tick summaries into an email-ready report.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// ErrEmpty is returned when no summary carries a new post.
var ErrEmpty = errors.New("no new posts to report")

// Builder creates reports from scan summaries
type Builder struct {
	template *template.Template
}

// New creates a new report builder
func New() (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{template: tmpl}, nil
}

// Report represents a compiled report ready for sending
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	PostCount int
	CreatedAt time.Time
}

// Data is the template data structure
type Data struct {
	Title          string
	Date           string
	Configurations []ConfigurationData
	Stats          StatsData
}

// ConfigurationData groups the new posts of one configuration.
type ConfigurationData struct {
	ID     int64
	Posts  []PostData
	Errors []string
}

// PostData represents a post in the report template
type PostData struct {
	Subreddit  string
	Title      string
	URL        string
	Candidates int
	BestReply  string
	Score      int
	Grade      string
}

// StatsData contains report statistics
type StatsData struct {
	Scanned       int
	NewPosts      int
	NewCandidates int
}

// Build creates a report from summaries. Configurations without new posts
// are left out; ErrEmpty is returned when nothing remains.
func (b *Builder) Build(summaries []types.ConfigurationScanSummary, now time.Time) (*Report, error) {
	data := Data{
		Title: "New Reddit conversations",
		Date:  now.Format("Monday, January 2 15:04 MST"),
	}

	for _, s := range summaries {
		if s.Status == types.StatusScanned {
			data.Stats.Scanned++
		}
		if len(s.Posts) == 0 {
			continue
		}
		data.Stats.NewPosts += s.NewPosts
		data.Stats.NewCandidates += s.NewCandidates

		posts := make([]PostData, len(s.Posts))
		for i, p := range s.Posts {
			posts[i] = PostData{
				Subreddit:  p.Subreddit,
				Title:      p.Title,
				URL:        p.Permalink,
				Candidates: p.Candidates,
				BestReply:  truncate(p.BestText, 600),
				Score:      p.BestScore,
				Grade:      p.BestGrade,
			}
		}
		// Best reply first
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Score > posts[j].Score
		})
		data.Configurations = append(data.Configurations, ConfigurationData{
			ID:     s.ConfigurationID,
			Posts:  posts,
			Errors: s.Errors,
		})
	}

	if len(data.Configurations) == 0 {
		return nil, ErrEmpty
	}

	// Render HTML
	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("ReplyScout: %d new posts, %s", data.Stats.NewPosts, now.Format("Jan 2 15:04")),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		PostCount: data.Stats.NewPosts,
		CreatedAt: now,
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	n := maxLen - 3
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n]) + "..."
}

func buildPlainText(data Data) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s\n%s\n\n", data.Title, data.Date))

	for _, c := range data.Configurations {
		buf.WriteString(fmt.Sprintf("Configuration #%d\n", c.ID))
		for i, p := range c.Posts {
			buf.WriteString(fmt.Sprintf("%d. [r/%s] %s\n", i+1, p.Subreddit, p.Title))
			buf.WriteString(fmt.Sprintf("   %s\n", p.URL))
			if p.BestReply != "" {
				buf.WriteString(fmt.Sprintf("   Best reply (%d, %s): %s\n", p.Score, p.Grade, p.BestReply))
			}
			buf.WriteString("\n")
		}
		for _, e := range c.Errors {
			buf.WriteString(fmt.Sprintf("   ! %s\n", e))
		}
	}

	buf.WriteString(fmt.Sprintf("%d new posts, %d reply candidates\n", data.Stats.NewPosts, data.Stats.NewCandidates))
	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #ff4500; margin-bottom: 5px; }
        h2 { font-size: 16px; color: #333; margin-top: 25px; }
        .date { color: #666; margin-bottom: 20px; }
        .post { border-bottom: 1px solid #eee; padding: 15px 0; }
        .post:last-child { border-bottom: none; }
        .sub { color: #666; font-size: 13px; }
        .title { font-weight: bold; color: #333; margin: 4px 0; }
        .reply { margin: 10px 0; padding: 10px; background: #fafafa; border-left: 3px solid #ff4500; line-height: 1.4; white-space: pre-wrap; }
        .grade { background: #fff1eb; color: #ff4500; padding: 2px 8px; border-radius: 12px; font-size: 12px; }
        .error { color: #b00020; font-size: 12px; }
        .link { color: #ff4500; text-decoration: none; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>

        {{range .Configurations}}
        <h2>Configuration #{{.ID}}</h2>
        {{range .Posts}}
        <div class="post">
            <div class="sub">r/{{.Subreddit}}</div>
            <div class="title">{{.Title}}</div>
            {{if .BestReply}}
            <div class="reply">{{.BestReply}}</div>
            <span class="grade">{{.Grade}} · {{.Score}}</span> <span class="sub">{{.Candidates}} drafts</span>
            {{else}}
            <div class="sub">No reply drafts</div>
            {{end}}
            <div><a href="{{.URL}}" class="link">Open on Reddit →</a></div>
        </div>
        {{end}}
        {{range .Errors}}<div class="error">{{.}}</div>{{end}}
        {{end}}

        <div class="footer">
            {{.Stats.NewPosts}} new posts · {{.Stats.NewCandidates}} reply drafts · {{.Stats.Scanned}} configurations scanned
        </div>
    </div>
</body>
</html>`
