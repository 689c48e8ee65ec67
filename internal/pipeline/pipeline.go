// Package pipeline runs one brand end to end: fetch every source, reconcile,
// validate, write and record the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/reconcile"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/sources/registry"
	"inventory-scrapers/internal/telemetry"
	"inventory-scrapers/internal/validate"
	"inventory-scrapers/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("internal/pipeline")

type Options struct {
	API telemetry.API
	// Sink is required.
	Sink inventory.Sink
	// History is optional.
	History inventory.RunHistory
	// Session is created from the brand config when nil.
	Session *resty.Client
	Dump    restyutil.InstrumentOutput
	Sleep   fetch.SleepFunc
	Now     func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

type SourceStats struct {
	Name    string
	Records int
	// Err is set for a secondary source whose records were dropped.
	Err error
}

type Result struct {
	Run         inventory.RunInfo
	Sources     []SourceStats
	Merged      int
	Orphans     int
	Excluded    int
	Duplicates  int
	MissingKeys int
	FieldErrors int
	Rejected    []*inventory.ValidationError
	Written     int
	Output      string
}

// Degraded lists the secondary sources that failed.
func (r Result) Degraded() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s.Name)
		}
	}
	return out
}

// Run executes one brand run. A fatal failure of the primary source aborts
// the run before any output is written.
func Run(ctx context.Context, run inventory.Run, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("brand", run.Brand),
		attribute.String("run", run.ID.String()),
	)

	result := Result{Run: run.RunInfo}
	api := opts.API
	if api == nil {
		api = telemetry.SlogAPI{}
	}

	history := opts.History
	if history != nil {
		err := history.BeginRun(ctx, run.RunInfo)
		if err != nil {
			api.ReportWarning("history-disabled", "err", err)
			history = nil
		}
	}

	output, err := execute(ctx, run, opts, api, history, &result)
	outcome := inventory.RunOutcome{
		Status:     inventory.RunSucceeded,
		FinishedAt: opts.now(),
		Records:    result.Written,
		Rejected:   len(result.Rejected),
		Output:     output,
	}
	if err != nil {
		outcome.Status = inventory.RunFailed
		outcome.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "brand run failed")
	}
	if history != nil {
		herr := history.FinishRun(context.WithoutCancel(ctx), run.ID, outcome)
		if herr != nil {
			api.ReportWarning("history-finish", "err", herr)
		}
	}
	return result, err
}

func execute(ctx context.Context, run inventory.Run, opts Options, api telemetry.API, history inventory.RunHistory, result *Result) (string, error) {
	cfg := run.Config

	reconciler, err := reconcile.Compile(cfg, telemetry.NewScopedAPI("reconcile", api))
	if err != nil {
		return "", fmt.Errorf("compile %s: %w", cfg.Brand, err)
	}
	validator := validate.New(cfg.Required, telemetry.NewScopedAPI("validate", api))

	session := opts.Session
	if session == nil {
		sessionOpts := fetch.SessionOptionsFor(cfg)
		sessionOpts.Dump = opts.Dump
		session, err = fetch.NewSession(sessionOpts)
		if err != nil {
			return "", err
		}
	}
	built, err := registry.Build(cfg, sources.Deps{
		Brand:   cfg.Brand,
		Session: session,
		API:     api,
		Retry:   cfg.Retry,
		History: history,
		Sleep:   opts.Sleep,
	})
	if err != nil {
		return "", err
	}

	records, err := fetchAll(ctx, cfg, built, api, result)
	if err != nil {
		return "", err
	}

	merged := reconciler.Reconcile(records)
	result.Merged = len(merged.Records)
	result.Orphans = len(merged.Orphans)
	result.Excluded = merged.Excluded
	result.Duplicates = merged.Duplicates
	result.MissingKeys = merged.MissingKeys
	result.FieldErrors = merged.FieldErrors

	accepted, rejected := validator.ValidateAll(merged.Records)
	result.Rejected = rejected
	if len(rejected) > 0 {
		// style values cover written rows only
		reconciler.Aggregate(accepted)
	}

	output, err := opts.Sink.Write(ctx, cfg.Brand, cfg.Output.Columns, accepted)
	if err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	result.Written = len(accepted)
	result.Output = output
	api.ReportCount("rows-written", int64(len(accepted)))
	api.ReportDebug("written", "path", output, "rows", len(accepted), "rejected", len(rejected))

	if history != nil {
		err = history.SaveSnapshots(ctx, run.RunInfo, accepted)
		if err != nil {
			api.ReportWarning("history-snapshots", "err", err)
		}
	}
	return output, nil
}

// records and err are read only after done is closed.
type fetched struct {
	records []inventory.RawRecord
	err     error
	done    chan struct{}
}

// fetchAll runs independent sources concurrently and each dependent source
// once its dependency has finished. Only a primary failure is returned.
func fetchAll(ctx context.Context, cfg inventory.BrandConfig, built []sources.Source, api telemetry.API, result *Result) (map[string][]inventory.RawRecord, error) {
	state := make(map[string]*fetched, len(built))
	for _, src := range built {
		state[src.Name()] = &fetched{done: make(chan struct{})}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, src := range built {
		name := src.Name()
		st := state[name]
		emit := func(rec inventory.RawRecord) error {
			if rec.Source == "" {
				rec.Source = name
			}
			st.records = append(st.records, rec)
			return nil
		}

		group.Go(func() error {
			defer close(st.done)

			var err error
			switch s := src.(type) {
			case sources.Dependent:
				upstream := state[s.DependsOn()]
				select {
				case <-upstream.done:
				case <-groupCtx.Done():
					err = groupCtx.Err()
				}
				if err != nil {
					break
				}
				if upstream.err != nil {
					err = fmt.Errorf("dependency %s failed: %w", s.DependsOn(), upstream.err)
					break
				}
				err = s.FetchFor(groupCtx, upstream.records, emit)
			case sources.Lister:
				err = s.Fetch(groupCtx, emit)
			}
			if err == nil {
				api.ReportDebug("source-done", "source", name, "records", len(st.records))
				return nil
			}

			st.err = err
			if name == cfg.Primary {
				api.ReportBroken("primary-failed", "source", name, "err", err)
				return fmt.Errorf("primary source %s: %w", name, err)
			}
			api.ReportWarning("source-degraded", "source", name, "err", err)
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]inventory.RawRecord, len(built))
	for _, src := range built {
		st := state[src.Name()]
		stats := SourceStats{Name: src.Name(), Err: st.err}
		if st.err == nil {
			out[src.Name()] = st.records
			stats.Records = len(st.records)
		}
		result.Sources = append(result.Sources, stats)
	}
	return out, ctx.Err()
}
