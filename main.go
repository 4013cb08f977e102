// Command replyscout runs the scan daemon: it ticks the scan orchestrator
// on a fixed interval until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/app"
	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/logger"
	"github.com/ibeckermayer/replyscout/internal/scheduler"
	"github.com/ibeckermayer/replyscout/internal/store"
)

func main() {
	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not save default config: %v\n", err)
			} else {
				path, _ := config.ConfigPath()
				fmt.Fprintf(os.Stderr, "Created default config at: %s\n", path)
			}
			if err := cfg.ApplyEnv(); err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	log := logger.New("replyscout", cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("replyscout stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.Database.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	cacheDir, err := config.CacheDir()
	if err != nil {
		return fmt.Errorf("failed to get cache dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, st, cacheDir, log)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Scan.Timezone, log)
	if err != nil {
		return err
	}
	// Scheduled runs get their own deadline; shutdown cancels them too.
	tick := func(jobCtx context.Context) error {
		jobCtx, cancel := context.WithCancel(jobCtx)
		defer cancel()
		defer context.AfterFunc(ctx, cancel)()
		_, err := a.Tick(jobCtx)
		return err
	}
	err = sched.AddTickJob(
		config.Seconds(cfg.Scan.TickSeconds),
		config.Seconds(cfg.Scan.TickDeadlineSeconds),
		tick,
	)
	if err != nil {
		return err
	}

	// SIGHUP reloads the config file without restarting.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info().
		Str("database", cfg.Database.Driver).
		Str("fetcher", cfg.Reddit.Fetcher).
		Str("executor", cfg.Scan.Executor).
		Int("tick_seconds", cfg.Scan.TickSeconds).
		Msg("replyscout starting")

	sched.Start()

	for {
		select {
		case <-hup:
			if err := a.ReloadConfig(ctx); err != nil {
				log.Error().Err(err).Msg("failed to reload config")
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down, waiting for running scan")
			<-sched.Stop().Done()
			return nil
		}
	}
}
