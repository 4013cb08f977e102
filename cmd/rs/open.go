package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/replyscout/internal/app"
	browseropts "github.com/ibeckermayer/replyscout/internal/browser"
	"github.com/ibeckermayer/replyscout/internal/config"
)

var openCmd = &cobra.Command{
	Use:       "open <config|cache|report>",
	Short:     "Open the config file, cache directory or latest report",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"config", "cache", "report"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error

		switch args[0] {
		case "config":
			path, err = config.ConfigPath()
			if err == nil {
				err = ensureConfigFile(path)
			}
		case "cache":
			path, err = config.CacheDir()
			if err == nil {
				err = os.MkdirAll(path, 0755)
			}
		case "report":
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.ViewLastReport()
			})
		default:
			return fmt.Errorf("unknown target: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get path: %w", err)
		}

		return browser.OpenFile(path)
	},
}

// ensureConfigFile writes the default config on first use so there is
// something to open.
func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return config.Default().Save()
}

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com to audit the fallback fetcher's browser fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Opening bot.sannysoft.com with stealth browser options...")

		opts := browseropts.Options(false) // non-headless so you can see it

		allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		err := chromedp.Run(ctx,
			chromedp.Navigate("https://bot.sannysoft.com"),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("failed to navigate: %w", err)
		}

		fmt.Println("Press Enter to close the browser...")
		fmt.Scanln()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(botTestCmd)
}
