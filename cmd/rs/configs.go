package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/replyscout/internal/importer"
	"github.com/ibeckermayer/replyscout/internal/schedule"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Manage client monitoring configurations",
}

var configsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create clients and configurations from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := importer.LoadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := importer.Import(context.Background(), st, f, time.Now().In(cfg.Location()))
		green := color.New(color.FgGreen).SprintFunc()
		for _, r := range results {
			fmt.Printf("%s %s / %s (id %d, next due %s)\n", green("✓"), r.Client, r.Name, r.ConfigurationID, r.NextDue)
		}
		return err
	},
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		configs, err := st.ListConfigurations(context.Background())
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Configurations ==="))
		if len(configs) == 0 {
			fmt.Printf("  %s\n\n", gray("None. Use 'rs configs import FILE'."))
			return nil
		}

		now := time.Now().In(cfg.Location())
		for _, c := range configs {
			state := gray("inactive")
			if c.Active {
				state = green("active")
			}
			fmt.Printf("  #%d %s  %s\n", c.ID, c.Name, state)
			fmt.Printf("    Client:     %d\n", c.ClientID)
			fmt.Printf("    Subreddits: %s\n", strings.Join(c.Subreddits, ", "))

			kws := make([]string, len(c.Keywords))
			for i, k := range c.Keywords {
				kws[i] = k.String()
			}
			fmt.Printf("    Keywords:   %s\n", strings.Join(kws, ", "))
			fmt.Printf("    Schedule:   every %v, %02d:00-%02d:59, days %v\n",
				c.Schedule.Interval(), c.Schedule.ActiveStartHour, c.Schedule.ActiveEndHour, c.Schedule.ActiveDays)

			last := "never"
			if c.Schedule.LastScanAt != nil {
				last = c.Schedule.LastScanAt.In(cfg.Location()).Format("2006-01-02 15:04")
			}
			fmt.Printf("    Last scan:  %s\n", last)
			if c.Active {
				next := "never"
				if t := schedule.NextDue(c.Schedule, now); !t.IsZero() {
					next = t.Format("2006-01-02 15:04")
				}
				fmt.Printf("    Next due:   %s\n", next)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	configsCmd.AddCommand(configsImportCmd)
	configsCmd.AddCommand(configsListCmd)
	rootCmd.AddCommand(configsCmd)
}
