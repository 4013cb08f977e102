// Package app wires configuration, storage and the scan pipeline together
// and is shared by the daemon and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/enricher"
	"github.com/ibeckermayer/replyscout/internal/generator"
	"github.com/ibeckermayer/replyscout/internal/notifier"
	"github.com/ibeckermayer/replyscout/internal/orchestrator"
	"github.com/ibeckermayer/replyscout/internal/reddit"
	"github.com/ibeckermayer/replyscout/internal/report"
	"github.com/ibeckermayer/replyscout/internal/store"
	"github.com/ibeckermayer/replyscout/internal/types"
)

// App holds the application state.
type App struct {
	mu       sync.RWMutex
	store    *store.Store // immutable after creation
	cacheDir string
	reports  *report.Builder
	locks    *orchestrator.Locks // survives ReloadConfig
	openFile func(path string) error
	log      zerolog.Logger

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	orch     *orchestrator.Orchestrator
	notifier *notifier.Notifier
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	orch     *orchestrator.Orchestrator
	notifier *notifier.Notifier
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		orch:     a.orch,
		notifier: a.notifier,
	}
}

// New creates a new App instance. The store stays owned by the caller.
func New(ctx context.Context, cfg *config.Config, st *store.Store, cacheDir string, log zerolog.Logger) (*App, error) {
	reports, err := report.New()
	if err != nil {
		return nil, err
	}
	a := &App{
		store:    st,
		cacheDir: cacheDir,
		reports:  reports,
		locks:    &orchestrator.Locks{},
		openFile: browser.OpenFile,
		log:      log,
	}
	s, err := a.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.config, a.orch, a.notifier = s.config, s.orch, s.notifier
	return a, nil
}

// build creates the pipeline components for cfg.
func (a *App) build(ctx context.Context, cfg *config.Config) (snapshot, error) {
	var fetcher orchestrator.Fetcher
	switch cfg.Reddit.Fetcher {
	case config.FetcherBrowser:
		fetcher = reddit.NewBrowserFetcher(cfg.Reddit.Headless, cfg.Reddit.PostsPerFetch,
			config.Seconds(cfg.Reddit.TimeoutSeconds), a.log)
	default:
		fetcher = reddit.NewClient(reddit.Options{
			BaseURL:           cfg.Reddit.BaseURL,
			UserAgent:         cfg.Reddit.UserAgent,
			Limit:             cfg.Reddit.PostsPerFetch,
			RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
			Timeout:           config.Seconds(cfg.Reddit.TimeoutSeconds),
		}, a.log)
	}

	sources, err := enricher.SourcesFromConfig(ctx, cfg.Enrichment)
	if err != nil {
		return snapshot{}, err
	}
	enr := enricher.New(sources, cfg.Enrichment.ResultsPerSource,
		config.Seconds(cfg.Enrichment.TimeoutSeconds), a.log)

	gen, err := generator.FromConfig(cfg.Generation, cfg.Debug, a.cacheDir, a.log)
	if err != nil {
		return snapshot{}, err
	}

	opts := orchestrator.Options{
		Candidates: cfg.Generation.Candidates,
		Location:   cfg.Location(),
		LeaseTTL:   2 * config.Seconds(cfg.Scan.TickDeadlineSeconds),
		Locks:      a.locks,
	}
	if cfg.Debug.CacheSteps {
		opts.CacheDir = a.cacheDir
	}
	orch := orchestrator.New(a.store, fetcher, enr, gen, orchestrator.NewExecutor(cfg.Scan), opts, a.log)

	n, err := notifier.NewFromConfig(cfg.Email)
	if errors.Is(err, notifier.ErrDisabled) {
		n = nil
	} else if err != nil {
		return snapshot{}, err
	}

	return snapshot{config: cfg, orch: orch, notifier: n}, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Tick runs one scan tick over every active configuration and delivers
// a report when anything new was found.
func (a *App) Tick(ctx context.Context) ([]types.ConfigurationScanSummary, error) {
	s := a.getSnapshot()
	now := time.Now()

	summaries, err := s.orch.RunScanTick(ctx, now)
	if err != nil {
		return nil, err
	}

	scanned := 0
	for _, sum := range summaries {
		if sum.Status == types.StatusScanned {
			scanned++
		}
	}
	a.log.Info().Int("configurations", len(summaries)).Int("scanned", scanned).Msg("tick finished")

	a.deliver(s, summaries, now)
	return summaries, nil
}

// ScanNow scans one configuration immediately. With force the schedule is
// ignored.
func (a *App) ScanNow(ctx context.Context, configurationID int64, force bool) (types.ConfigurationScanSummary, error) {
	s := a.getSnapshot()
	now := time.Now()

	sum, err := s.orch.RunScanForConfiguration(ctx, configurationID, now, force)
	if err != nil {
		return sum, err
	}
	a.deliver(s, []types.ConfigurationScanSummary{sum}, now)
	return sum, nil
}

// deliver renders, saves and emails the report. Failures are logged only.
func (a *App) deliver(s snapshot, summaries []types.ConfigurationScanSummary, now time.Time) {
	r, err := a.reports.Build(summaries, now.In(s.config.Location()))
	if errors.Is(err, report.ErrEmpty) {
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed to build report")
		return
	}

	if path, err := store.SaveTextOutput(a.cacheDir, store.StepReports, r.HTMLBody, ".html"); err != nil {
		a.log.Warn().Err(err).Msg("failed to save report")
	} else {
		a.log.Info().Str("path", path).Int("posts", r.PostCount).Msg("report saved")
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendReport(r); err != nil {
		a.log.Error().Err(err).Msg("failed to email report")
		return
	}
	a.log.Info().Str("to", s.config.Email.ToAddr).Msg("report emailed")
}

// LatestReport returns the path of the most recent saved report.
func (a *App) LatestReport() (string, error) {
	path, err := store.LatestStepFile(a.cacheDir, store.StepReports)
	if err != nil {
		return "", fmt.Errorf("no report found: %w", err)
	}
	return path, nil
}

// ViewLastReport opens the most recent report in the default browser.
func (a *App) ViewLastReport() error {
	path, err := a.LatestReport()
	if err != nil {
		return err
	}
	a.log.Info().Str("path", path).Msg("opening report")
	return a.openFile(path)
}

// ReloadConfig reloads the configuration from disk. The database settings
// are not re-applied; the store is kept.
func (a *App) ReloadConfig(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := a.build(ctx, cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config, a.orch, a.notifier = s.config, s.orch, s.notifier
	a.mu.Unlock()

	a.log.Info().Msg("configuration reloaded")
	return nil
}
