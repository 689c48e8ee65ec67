package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inventory-scrapers/internal/history"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/pipeline"
	"inventory-scrapers/internal/runlog"
	"inventory-scrapers/internal/sink"
	report "inventory-scrapers/internal/telemetry"
	"inventory-scrapers/lib/restyutil"
	"inventory-scrapers/lib/telemetry"
	"inventory-scrapers/lib/timezone"

	"github.com/caarlos0/env/v6"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ScrapeOptions are read from the environment first, flags override them.
type ScrapeOptions struct {
	OutDir   string `env:"INVENTORY_OUT_DIR" envDefault:"output"`
	LogDir   string `env:"INVENTORY_LOG_DIR" envDefault:"logs"`
	Format   string `env:"INVENTORY_FORMAT"`
	DumpHTTP string `env:"INVENTORY_DUMP_HTTP"`
	Parallel int    `env:"INVENTORY_PARALLEL" envDefault:"2"`
	History  history.Config
}

func init() {
	flags := scrapeCmd.Flags()
	flags.String("out", "output", "Directory output sheets are written to.")
	flags.String("log-dir", "logs", "Directory of the per brand run logs, falls back to <out>/logs.")
	flags.String("format", "", "Output format (csv or xlsx), overrides the brand config.")
	flags.String("history", "", "sqlite file recording runs and previous quantities.")
	flags.String("dump-http", "", "Dump every http exchange into this directory.")
	flags.Int("parallel", 2, "Number of brands scraped at once.")
	rootCmd.AddCommand(scrapeCmd)
}

func scrapeOptions(cmd *cobra.Command) (ScrapeOptions, error) {
	var opts ScrapeOptions
	err := env.Parse(&opts)
	if err != nil {
		return opts, err
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		opts.OutDir, _ = flags.GetString("out")
	}
	if flags.Changed("log-dir") {
		opts.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("format") {
		opts.Format, _ = flags.GetString("format")
	}
	if flags.Changed("history") {
		opts.History = history.Config{}
		opts.History.File, _ = flags.GetString("history")
	}
	if flags.Changed("dump-http") {
		opts.DumpHTTP, _ = flags.GetString("dump-http")
	}
	if flags.Changed("parallel") {
		opts.Parallel, _ = flags.GetInt("parallel")
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	switch opts.Format {
	case "", sink.FormatCSV, sink.FormatXLSX:
	default:
		return opts, fmt.Errorf("unknown format %q", opts.Format)
	}
	return opts, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <brand.json5>... [--out DIR] [--format csv|xlsx] [--history FILE] [--parallel N]",
	Short: "Scrapes each brand and writes one inventory sheet per brand.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := scrapeOptions(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		perfCtx, stopPerf := context.WithCancel(ctx)
		defer stopPerf()
		telemetry.InstrumentPerfStats(perfCtx, 10*time.Second)

		var runHistory inventory.RunHistory
		if opts.History.Enabled() {
			store, err := history.Open(ctx, opts.History)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()
			runHistory = store
		}

		outcomes := scrapeAll(ctx, args, opts, runHistory)
		renderSummary(outcomes)

		var errs []error
		for _, o := range outcomes {
			if o.err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", o.brand, o.err))
			}
		}
		return errors.Join(errs...)
	},
}

// scrapeAll runs up to opts.Parallel brands at once. Outcomes keep the
// order of paths, one failing brand never stops the others.
func scrapeAll(ctx context.Context, paths []string, opts ScrapeOptions, runHistory inventory.RunHistory) []brandOutcome {
	outcomes := make([]brandOutcome, len(paths))
	group := errgroup.Group{}
	group.SetLimit(max(opts.Parallel, 1))
	for i, path := range paths {
		group.Go(func() error {
			outcomes[i] = scrapeBrand(ctx, path, opts, runHistory)
			return nil
		})
	}
	// scrapeBrand reports failures through outcomes, never through the group
	_ = group.Wait()
	return outcomes
}

type brandOutcome struct {
	brand    string
	result   pipeline.Result
	warnings int
	err      error
}

func scrapeBrand(ctx context.Context, path string, opts ScrapeOptions, runHistory inventory.RunHistory) (out brandOutcome) {
	out.brand = inventory.BrandFromPath(path)

	cfg, err := inventory.LoadBrand(path)
	if err != nil {
		out.err = err
		return out
	}
	out.brand = cfg.Brand

	loc, err := timezone.Load(cfg.Timezone)
	if err != nil {
		out.err = fmt.Errorf("timezone: %w", err)
		return out
	}
	run := inventory.NewRun(cfg, loc, timezone.Now(loc))

	runLog := runlog.Open(runlog.Options{
		Brand:   cfg.Brand,
		Dirs:    []string{opts.LogDir, filepath.Join(opts.OutDir, "logs")},
		Console: telemetry.ConsoleHandler(telemetry.SlogOptions{Verbose: *debug}),
		Level:   levelFor(*debug),
	})
	defer runLog.Close()
	logger := runLog.Logger.With("run", run.ID.String())

	format := cfg.Output.Format
	if opts.Format != "" {
		format = opts.Format
	}

	var dump restyutil.InstrumentOutput
	if opts.DumpHTTP != "" {
		fs, err := restyutil.NewFilesystemOutput(filepath.Join(opts.DumpHTTP, cfg.Brand))
		if err != nil {
			logger.Warn("http dump disabled", "err", err)
		} else {
			dump = fs
		}
	}

	tally := &report.Tally{}
	defer func() {
		for _, n := range tally.Warnings() {
			out.warnings += n
		}
	}()

	logger.Info("starting run", "config", path, "sources", len(cfg.Sources))
	out.result, out.err = pipeline.Run(ctx, run, pipeline.Options{
		API: report.NewScopedAPI(cfg.Brand, report.Fanout{report.SlogAPI{Logger: logger}, tally}),
		Sink: sink.FileSink{
			Dir:    opts.OutDir,
			Format: format,
			Prefix: cfg.Output.Prefix,
			Now:    func() time.Time { return timezone.Now(loc) },
		},
		History: runHistory,
		Dump:    dump,
	})
	if out.err != nil {
		logger.Error("run failed", "err", out.err)
		return out
	}
	logger.Info(
		"run finished",
		"output", out.result.Output,
		"rows", out.result.Written,
		"rejected", len(out.result.Rejected),
		"orphans", out.result.Orphans,
	)
	return out
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func renderSummary(outcomes []brandOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Brand", "Status", "Rows", "Rejected", "Orphans", "Excluded", "Warnings", "Degraded", "Output"})
	for _, o := range outcomes {
		status := "ok"
		output := o.result.Output
		if o.err != nil {
			status = "failed"
			output = o.err.Error()
		}
		t.AppendRow(table.Row{
			o.brand,
			status,
			o.result.Written,
			len(o.result.Rejected),
			o.result.Orphans,
			o.result.Excluded,
			o.warnings,
			strings.Join(o.result.Degraded(), ", "),
			output,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
