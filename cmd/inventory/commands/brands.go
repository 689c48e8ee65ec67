package commands

import (
	"fmt"
	"strings"

	"inventory-scrapers/internal/inventory"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(brandsCmd)
}

var brandsCmd = &cobra.Command{
	Use:   "brands [DIR]",
	Short: "Lists the brand configs in a directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "brands"
		if len(args) > 0 {
			dir = args[0]
		}
		paths, err := inventory.ListBrands(dir)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Brand", "Config", "Primary", "Sources", "Format"})
		for _, path := range paths {
			cfg, err := inventory.LoadBrand(path)
			if err != nil {
				t.AppendRow(table.Row{inventory.BrandFromPath(path), path, "", fmt.Sprintf("invalid: %v", err), ""})
				continue
			}
			var srcs []string
			for _, s := range cfg.Sources {
				srcs = append(srcs, s.Name+":"+s.Type)
			}
			t.AppendRow(table.Row{cfg.Brand, path, cfg.Primary, strings.Join(srcs, ", "), cfg.Output.Format})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
