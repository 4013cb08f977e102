// Package enricher gathers external context for a matched post before
// reply generation.
package enricher

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// Result is a single hit returned by a Source.
type Result struct {
	Title string
	URL   string
}

// Source is one external lookup, such as a web search or a video index.
type Source interface {
	Type() types.SourceType
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Enricher queries every source concurrently and merges what comes back.
type Enricher struct {
	sources []Source
	limit   int
	timeout time.Duration
	log     zerolog.Logger
}

// New creates an Enricher. limit caps results per source; timeout bounds
// each source call.
func New(sources []Source, limit int, timeout time.Duration, log zerolog.Logger) *Enricher {
	if limit <= 0 {
		limit = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Enricher{
		sources: sources,
		limit:   limit,
		timeout: timeout,
		log:     log.With().Str("component", "enricher").Logger(),
	}
}

// Enrich returns context snippets for post. It never fails: a source that
// errors or times out contributes nothing. Snippets are grouped by source
// in the order sources were given.
func (e *Enricher) Enrich(ctx context.Context, post types.MatchedPost) []types.ContextSnippet {
	query := Query(post.Title)
	if query == "" || len(e.sources) == 0 {
		return nil
	}

	results := make([][]types.ContextSnippet, len(e.sources))

	var g errgroup.Group
	for i, src := range e.sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			hits, err := src.Search(sctx, query, e.limit)
			if err != nil {
				e.log.Warn().Err(err).
					Str("source", string(src.Type())).
					Str("post", post.ExternalID).
					Msg("context lookup failed")
				return nil
			}
			if len(hits) > e.limit {
				hits = hits[:e.limit]
			}
			snippets := make([]types.ContextSnippet, 0, len(hits))
			for _, h := range hits {
				if h.URL == "" {
					continue
				}
				snippets = append(snippets, types.ContextSnippet{
					Source: src.Type(),
					Title:  strings.TrimSpace(h.Title),
					URL:    h.URL,
				})
			}
			results[i] = snippets
			return nil
		})
	}
	g.Wait()

	var all []types.ContextSnippet
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

const maxQueryWords = 8

var queryWordRe = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'+#.-]*`)

var queryStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "at": true,
	"by": true, "from": true, "it": true, "this": true, "that": true, "i": true,
	"my": true, "me": true, "you": true, "we": true, "do": true, "does": true,
	"can": true, "any": true, "anyone": true, "how": true, "what": true,
	"help": true, "need": true, "please": true, "question": true,
}

// Query derives a short search query from a post title: the first few
// non-stopword terms, lowercased. Titles made only of stopwords fall
// back to their leading words.
func Query(title string) string {
	words := queryWordRe.FindAllString(strings.ToLower(title), -1)
	kept := make([]string, 0, maxQueryWords)
	for _, w := range words {
		w = strings.TrimRight(w, ".-")
		if w == "" || queryStopwords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxQueryWords {
			break
		}
	}
	if len(kept) == 0 {
		kept = words[:min(len(words), maxQueryWords)]
	}
	return strings.Join(kept, " ")
}
