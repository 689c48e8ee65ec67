package commands

import (
	"fmt"
	"time"

	"inventory-scrapers/internal/history"

	"github.com/caarlos0/env/v6"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int
var historyFile *string

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "Number of runs shown.")
	historyFile = historyCmd.Flags().String("history", "", "sqlite file recording runs, defaults to INVENTORY_HISTORY_FILE.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <brand> [--history FILE] [--limit N]",
	Short: "Shows the recent runs of a brand.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg history.Config
		err := env.Parse(&cfg)
		if err != nil {
			return err
		}
		if *historyFile != "" {
			cfg = history.Config{File: *historyFile}
		}
		if !cfg.Enabled() {
			return fmt.Errorf("no history configured, pass --history or set INVENTORY_HISTORY_FILE")
		}

		store, err := history.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context(), args[0], *historyLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Started", "Status", "Rows", "Rejected", "Duration", "Output"})
		for _, r := range runs {
			duration := ""
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			output := r.Output
			if r.Error != "" {
				output = r.Error
			}
			t.AppendRow(table.Row{
				r.StartedAt.Format(time.DateTime),
				r.Status,
				r.Records,
				r.Rejected,
				duration,
				output,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
