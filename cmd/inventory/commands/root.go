package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/configutil"
	"inventory-scrapers/lib/serviceutil"
	"inventory-scrapers/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	debug    *bool
	envFiles *[]string

	shutdown func(context.Context) error
)

func init() {
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Log debug output and progress events.")
	envFiles = rootCmd.PersistentFlags().StringSlice("env", []string{".env"}, "Environment files loaded before brand configs are read.")
}

var rootCmd = &cobra.Command{
	Use:           "inventory",
	Short:         "inventory scrapes brand storefronts into normalized inventory sheets.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(telemetry.SlogOptions{Verbose: *debug})

		err := configutil.LoadDotenv(*envFiles...)
		if err != nil {
			return err
		}

		tel, err := telemetry.SetupFromEnv(cmd.Context(), telemetry.Service{
			Name:    "inventory",
			Command: cmd.Name(),
			Brands:  commandBrands(cmd, args),
		})
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no telemetry.json5 found, telemetry disabled")
			return nil
		}
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		shutdown = tel.Shutdown
		return nil
	},
}

// commandBrands names the brands a command works on, brand files for
// scrape and check, the brand itself for history.
func commandBrands(cmd *cobra.Command, args []string) []string {
	switch cmd.Name() {
	case "scrape", "check":
		out := make([]string, len(args))
		for i, path := range args {
			out[i] = inventory.BrandFromPath(path)
		}
		return out
	case "history":
		return args
	}
	return nil
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if shutdown != nil {
		serr := shutdown(context.Background())
		if serr != nil {
			slog.Warn("telemetry shutdown", "err", serr)
		}
	}
	if err != nil {
		serviceutil.Fatal("inventory failed", err)
	}
}
