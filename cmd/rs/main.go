// Command rs is the operator CLI for replyscout: manual scans, config
// import and debugging helpers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/replyscout/internal/app"
	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/logger"
	"github.com/ibeckermayer/replyscout/internal/store"
)

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:           "rs",
		Short:         "ReplyScout operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config-file", "c", "", "Path to config.toml (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when none
// exists yet.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFile(path)
	if os.IsNotExist(err) {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.New("rs", level, true)
}

// openStore opens the configured database.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Database.Driver == config.DriverSQLite {
		if dir, err := config.ConfigDir(); err == nil {
			os.MkdirAll(dir, 0700)
		}
	}
	return store.Open(cfg.Database.Driver, cfg.Database.DSN)
}

// withApp runs fn with a fully wired App and closes the store afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cacheDir, err := config.CacheDir()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, st, cacheDir, log)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}
