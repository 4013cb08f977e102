package enricher

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// WebSearch queries a Google Programmable Search Engine.
type WebSearch struct {
	svc *customsearch.Service
	cx  string
}

// NewWebSearch creates a web search source for engine cx.
func NewWebSearch(ctx context.Context, cx string, opts ...option.ClientOption) (*WebSearch, error) {
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search client: %w", err)
	}
	return &WebSearch{svc: svc, cx: cx}, nil
}

func (w *WebSearch) Type() types.SourceType { return types.SourceSearch }

func (w *WebSearch) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	// The API rejects num outside 1..10.
	num := int64(min(max(limit, 1), 10))
	resp, err := w.svc.Cse.List().Q(query).Cx(w.cx).Num(num).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("custom search: %w", err)
	}
	out := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, Result{Title: item.Title, URL: item.Link})
	}
	return out, nil
}

// VideoSearch queries the YouTube Data API.
type VideoSearch struct {
	svc *youtube.Service
}

// NewVideoSearch creates a video search source.
func NewVideoSearch(ctx context.Context, opts ...option.ClientOption) (*VideoSearch, error) {
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &VideoSearch{svc: svc}, nil
}

func (v *VideoSearch) Type() types.SourceType { return types.SourceVideo }

func (v *VideoSearch) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	resp, err := v.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(max(limit, 1))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	out := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		out = append(out, Result{
			Title: item.Snippet.Title,
			URL:   "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		})
	}
	return out, nil
}

// SourcesFromConfig builds the sources that have credentials. Without an
// API key no source is returned and enrichment yields nothing.
func SourcesFromConfig(ctx context.Context, cfg config.EnrichmentConfig) ([]Source, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.GoogleAPIKey)}

	var sources []Source
	if cfg.GoogleCSEID != "" {
		web, err := NewWebSearch(ctx, cfg.GoogleCSEID, opts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, web)
	}
	video, err := NewVideoSearch(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return append(sources, video), nil
}
