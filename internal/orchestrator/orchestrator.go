// Package orchestrator runs scans: for every due configuration it fetches
// new posts, matches keywords, enriches, generates and scores replies, and
// persists the results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/generator"
	"github.com/ibeckermayer/replyscout/internal/matcher"
	"github.com/ibeckermayer/replyscout/internal/schedule"
	"github.com/ibeckermayer/replyscout/internal/scorer"
	"github.com/ibeckermayer/replyscout/internal/store"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// ErrScanInProgress is reported when a configuration is already being scanned.
var ErrScanInProgress = errors.New("scan already in progress")

// Store is the persistence the orchestrator needs.
type Store interface {
	ActiveConfigurations(ctx context.Context) ([]types.Configuration, error)
	GetConfiguration(ctx context.Context, id int64) (*types.Configuration, error)
	KnownKeys(ctx context.Context, clientID int64, subreddit string) (map[types.DedupKey]struct{}, error)
	PersistMatchedPost(ctx context.Context, p *types.MatchedPost) (int64, bool, error)
	PersistCandidate(ctx context.Context, c *types.ResponseCandidate) (int64, error)
	ClaimScan(ctx context.Context, configurationID int64, now time.Time, ttl time.Duration) (bool, error)
	ReleaseScan(ctx context.Context, configurationID int64) error
	MarkScanned(ctx context.Context, configurationID int64, at time.Time) error
}

// Locks serializes scans of a configuration within one process. Orchestrators
// that replace each other, such as after a config reload, share one Locks.
type Locks struct {
	m sync.Map // configuration id -> *sync.Mutex
}

// TryLock locks configuration id if it is free.
func (l *Locks) TryLock(id int64) (unlock func(), ok bool) {
	v, _ := l.m.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}


// Fetcher reads subreddit listings and rules.
type Fetcher interface {
	RecentPosts(ctx context.Context, subreddit string) ([]types.RawPost, error)
	Guidelines(ctx context.Context, subreddit string) string
}

// Enricher gathers context for a post. It must not fail.
type Enricher interface {
	Enrich(ctx context.Context, post types.MatchedPost) []types.ContextSnippet
}

// Generator drafts reply candidates.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) ([]string, error)
}

// Options tunes an Orchestrator.
type Options struct {
	// Candidates is the number of drafts requested per post.
	Candidates int
	// Location is the timezone schedules are evaluated in.
	Location *time.Location
	// CacheDir enables the debug step cache when non-empty.
	CacheDir string
	// LeaseTTL bounds how long a crashed scan keeps its configuration
	// claimed in the store.
	LeaseTTL time.Duration
	// Locks is shared with other orchestrators of this process. Nil
	// gives the orchestrator its own.
	Locks *Locks
}

// Orchestrator coordinates scans across configurations.
type Orchestrator struct {
	store     Store
	fetcher   Fetcher
	enricher  Enricher
	generator Generator
	exec      Executor
	opts      Options
	locks     *Locks
	log       zerolog.Logger
}

// New creates an orchestrator. A nil executor runs configurations sequentially.
func New(st Store, f Fetcher, e Enricher, g Generator, exec Executor, opts Options, log zerolog.Logger) *Orchestrator {
	if exec == nil {
		exec = Sequential{}
	}
	if opts.Candidates < 1 {
		opts.Candidates = 3
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Minute
	}
	locks := opts.Locks
	if locks == nil {
		locks = &Locks{}
	}
	return &Orchestrator{
		store:     st,
		fetcher:   f,
		enricher:  e,
		generator: g,
		exec:      exec,
		opts:      opts,
		locks:     locks,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// RunScanTick evaluates every active configuration once and scans those
// that are due. It fails only when configurations cannot be listed; all
// other failures are reported in the summaries.
func (o *Orchestrator) RunScanTick(ctx context.Context, now time.Time) ([]types.ConfigurationScanSummary, error) {
	configs, err := o.store.ActiveConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active configurations: %w", err)
	}

	summaries := make([]types.ConfigurationScanSummary, len(configs))
	o.exec.Run(ctx, len(configs), func(ctx context.Context, i int) {
		summaries[i] = o.scan(ctx, &configs[i], now, false)
	})
	return summaries, nil
}

// RunScanForConfiguration scans one configuration now. With force the
// schedule is ignored; last_scan_at is still updated.
func (o *Orchestrator) RunScanForConfiguration(ctx context.Context, id int64, now time.Time, force bool) (types.ConfigurationScanSummary, error) {
	cfg, err := o.store.GetConfiguration(ctx, id)
	if err != nil {
		return types.ConfigurationScanSummary{}, fmt.Errorf("failed to load configuration %d: %w", id, err)
	}
	return o.scan(ctx, cfg, now, force), nil
}

// run holds the state of one configuration scan.
type run struct {
	id      string
	cfg     *types.Configuration
	rules   []matcher.Rule
	now     time.Time
	summary *types.ConfigurationScanSummary
	log     zerolog.Logger
}

func (r *run) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.summary.Errors = append(r.summary.Errors, msg)
	r.log.Warn().Msg(msg)
}

func (o *Orchestrator) scan(ctx context.Context, cfg *types.Configuration, now time.Time, force bool) types.ConfigurationScanSummary {
	summary := types.ConfigurationScanSummary{
		ConfigurationID: cfg.ID,
		Status:          types.StatusSkipped,
		Errors:          []string{},
	}
	log := o.log.With().Int64("configuration_id", cfg.ID).Logger()

	if !force && !schedule.IsDue(cfg.Schedule, now.In(o.opts.Location)) {
		log.Debug().Msg("not due")
		return summary
	}

	unlock, ok := o.locks.TryLock(cfg.ID)
	if !ok {
		summary.Errors = append(summary.Errors, ErrScanInProgress.Error())
		log.Info().Msg("scan already in progress, skipping")
		return summary
	}
	defer unlock()

	bg, cancel := bookkeeping(ctx)
	claimed, err := o.store.ClaimScan(bg, cfg.ID, time.Now(), o.opts.LeaseTTL)
	cancel()
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		log.Error().Err(err).Msg("could not claim scan")
		return summary
	}
	if !claimed {
		summary.Errors = append(summary.Errors, ErrScanInProgress.Error())
		log.Info().Msg("scan claimed elsewhere, skipping")
		return summary
	}
	release := func() {
		bg, cancel := bookkeeping(ctx)
		defer cancel()
		if err := o.store.ReleaseScan(bg, cfg.ID); err != nil {
			log.Warn().Err(err).Msg("failed to release scan lease")
		}
	}

	// The row may have been scanned since cfg was loaded.
	bg, cancel = bookkeeping(ctx)
	fresh, err := o.store.GetConfiguration(bg, cfg.ID)
	cancel()
	if err != nil {
		release()
		summary.Errors = append(summary.Errors, err.Error())
		log.Error().Err(err).Msg("could not reload configuration")
		return summary
	}
	cfg = fresh
	if !force && !schedule.IsDue(cfg.Schedule, now.In(o.opts.Location)) {
		release()
		log.Debug().Msg("scanned elsewhere, no longer due")
		return summary
	}

	rules, err := matcher.Compile(cfg.Keywords)
	if err != nil {
		release()
		summary.Errors = append(summary.Errors, fmt.Sprintf("configuration error: %v", err))
		log.Error().Err(err).Msg("invalid keyword rules")
		return summary
	}

	summary.Status = types.StatusScanned
	r := &run{
		id:      uuid.NewString(),
		cfg:     cfg,
		rules:   rules,
		now:     now,
		summary: &summary,
	}
	r.log = log.With().Str("run_id", r.id).Logger()
	r.log.Info().Strs("subreddits", cfg.Subreddits).Bool("force", force).Msg("scan started")

	for _, sub := range cfg.Subreddits {
		if ctx.Err() != nil {
			r.fail("scan interrupted before r/%s: %v", types.NormalizeSubreddit(sub), ctx.Err())
			break
		}
		o.scanSubreddit(ctx, r, types.NormalizeSubreddit(sub))
	}

	// The attempt counts even when the tick deadline has passed.
	bg, cancel = bookkeeping(ctx)
	defer cancel()
	if err := o.store.MarkScanned(bg, cfg.ID, now); err != nil {
		r.fail("failed to record scan time: %v", err)
		release()
	}

	r.log.Info().
		Int("new_posts", summary.NewPosts).
		Int("new_candidates", summary.NewCandidates).
		Int("errors", len(summary.Errors)).
		Msg("scan finished")
	return summary
}

// bookkeeping returns a short context for lease and scan-time writes that
// must happen even when the tick deadline has passed.
func bookkeeping(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

func (o *Orchestrator) scanSubreddit(ctx context.Context, r *run, sub string) {
	posts, err := o.fetcher.RecentPosts(ctx, sub)
	if err != nil {
		r.fail("r/%s: %v", sub, err)
		return
	}
	o.cacheStep(r, store.StepFetched, sub, posts)

	known, err := o.store.KnownKeys(ctx, r.cfg.ClientID, sub)
	if err != nil {
		r.fail("r/%s: %v", sub, err)
		return
	}

	matches := matcher.FindNewMatches(posts, r.rules, known)
	r.log.Debug().Str("subreddit", sub).Int("fetched", len(posts)).Int("matched", len(matches)).Msg("matched posts")
	if len(matches) == 0 {
		return
	}
	o.cacheStep(r, store.StepMatched, sub, matches)

	var (
		guidelines string
		loaded     bool
		results    []types.PostResult
	)
	for i := range matches {
		if ctx.Err() != nil {
			r.fail("r/%s: %d posts deferred to next scan: %v", sub, len(matches)-i, ctx.Err())
			break
		}

		m := &matches[i]
		m.ClientID = r.cfg.ClientID
		m.ConfigurationID = r.cfg.ID
		m.FoundAt = r.now

		_, created, err := o.store.PersistMatchedPost(ctx, m)
		if err != nil {
			r.fail("r/%s post %s: %v", sub, m.ExternalID, err)
			continue
		}
		if !created {
			continue
		}
		r.summary.NewPosts++

		if !loaded {
			guidelines = o.fetcher.Guidelines(ctx, sub)
			loaded = true
		}

		res := o.processPost(ctx, r, m, guidelines)
		r.summary.NewCandidates += res.Candidates
		r.summary.Posts = append(r.summary.Posts, res)
		results = append(results, res)
	}
	o.cacheStep(r, store.StepCandidates, sub, results)
}

// processPost enriches, generates, scores and persists candidates for one
// new post. Failures are recorded and never propagate.
func (o *Orchestrator) processPost(ctx context.Context, r *run, m *types.MatchedPost, guidelines string) types.PostResult {
	res := types.PostResult{
		PostID:    m.ID,
		Subreddit: m.Subreddit,
		Title:     m.Title,
		Permalink: m.Permalink,
	}

	snippets := o.enricher.Enrich(ctx, *m)

	texts, err := o.generator.Generate(ctx, generator.Request{
		Post:       *m,
		Snippets:   snippets,
		Guidelines: guidelines,
		Voice:      r.cfg.Voice,
		Count:      o.opts.Candidates,
	})
	if err != nil {
		r.fail("r/%s post %s: %v", m.Subreddit, m.ExternalID, err)
		return res
	}

	for _, text := range texts {
		if generator.IsPlaceholder(text) {
			r.log.Info().Str("post", m.ExternalID).Msg("reply generation disabled; post saved without candidates")
			continue
		}
		c := &types.ResponseCandidate{
			PostID:    m.ID,
			Text:      text,
			Score:     scorer.Score(text, *m),
			CreatedAt: r.now,
		}
		if _, err := o.store.PersistCandidate(ctx, c); err != nil {
			r.fail("r/%s post %s: %v", m.Subreddit, m.ExternalID, err)
			continue
		}
		res.Candidates++
		if res.BestText == "" || c.Score.Total > res.BestScore {
			res.BestText = c.Text
			res.BestScore = c.Score.Total
			res.BestGrade = c.Score.Grade
		}
	}
	return res
}

func (o *Orchestrator) cacheStep(r *run, step store.StepName, sub string, data any) {
	if o.opts.CacheDir == "" {
		return
	}
	label := fmt.Sprintf("%d_%s_%s", r.cfg.ID, sub, r.id[:8])
	if path, err := store.SaveStepOutput(o.opts.CacheDir, step, label, data); err != nil {
		r.log.Warn().Err(err).Str("step", string(step)).Msg("failed to cache step output")
	} else {
		r.log.Debug().Str("path", path).Msg("cached step output")
	}
}
