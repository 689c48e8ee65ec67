package commands

import (
	"errors"
	"fmt"

	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/reconcile"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/sources/registry"
	report "inventory-scrapers/internal/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkBrand loads a brand config and builds everything a run would,
// without fetching anything.
func checkBrand(path string) (inventory.BrandConfig, error) {
	cfg, err := inventory.LoadBrand(path)
	if err != nil {
		return cfg, err
	}
	_, err = reconcile.Compile(cfg, report.SlogAPI{})
	if err != nil {
		return cfg, err
	}
	session, err := fetch.NewSession(fetch.SessionOptionsFor(cfg))
	if err != nil {
		return cfg, err
	}
	_, err = registry.Build(cfg, sources.Deps{
		Brand:   cfg.Brand,
		Session: session,
		API:     report.SlogAPI{},
		Retry:   cfg.Retry,
	})
	return cfg, err
}

var checkCmd = &cobra.Command{
	Use:   "check <brand.json5>...",
	Short: "Loads and validates brand configs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		for _, path := range args {
			cfg, err := checkBrand(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%s, %d sources)\n", path, cfg.Brand, len(cfg.Sources))
		}
		return errors.Join(errs...)
	},
}
