package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/replyscout/internal/app"
	"github.com/ibeckermayer/replyscout/internal/config"
	"github.com/ibeckermayer/replyscout/internal/types"
)

var (
	scanConfigID int64
	scanForce    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one configuration now",
	Long: `Run a scan for a single configuration immediately.
Without --force the configuration's schedule is still honored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanConfigID <= 0 {
			return fmt.Errorf("--config is required")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			ctx, cancel := context.WithTimeout(ctx, config.Seconds(a.Config().Scan.TickDeadlineSeconds))
			defer cancel()

			sum, err := a.ScanNow(ctx, scanConfigID, scanForce)
			if err != nil {
				return err
			}
			printSummaries([]types.ConfigurationScanSummary{sum})
			return nil
		})
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single scan tick over all active configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			ctx, cancel := context.WithTimeout(ctx, config.Seconds(a.Config().Scan.TickDeadlineSeconds))
			defer cancel()

			start := time.Now()
			summaries, err := a.Tick(ctx)
			if err != nil {
				return err
			}
			printSummaries(summaries)
			fmt.Printf("Tick finished in %v\n", time.Since(start).Round(time.Millisecond))
			return nil
		})
	},
}

func printSummaries(summaries []types.ConfigurationScanSummary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Scan Summary ==="))
	if len(summaries) == 0 {
		fmt.Printf("  %s\n\n", gray("No active configurations"))
		return
	}

	for _, s := range summaries {
		status := gray(string(s.Status))
		if s.Status == types.StatusScanned {
			status = green(string(s.Status))
		}
		fmt.Printf("  Configuration #%d  %s\n", s.ConfigurationID, status)
		if s.Status == types.StatusScanned {
			fmt.Printf("    New posts:      %d\n", s.NewPosts)
			fmt.Printf("    New candidates: %d\n", s.NewCandidates)
		}
		for _, p := range s.Posts {
			grade := gray("no drafts")
			if p.Candidates > 0 {
				grade = yellow(fmt.Sprintf("%s (%d)", p.BestGrade, p.BestScore))
			}
			fmt.Printf("    • [r/%s] %s  %s\n", p.Subreddit, p.Title, grade)
			fmt.Printf("      %s\n", gray(p.Permalink))
		}
		for _, e := range s.Errors {
			fmt.Printf("    %s %s\n", red("✗"), e)
		}
		fmt.Println()
	}
}

func init() {
	scanCmd.Flags().Int64Var(&scanConfigID, "config", 0, "Configuration ID (required)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Ignore the schedule")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tickCmd)
}
