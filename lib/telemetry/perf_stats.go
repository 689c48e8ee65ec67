package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type perfGauges struct {
	cpu        metric.Float64Gauge
	allocated  metric.Int64Gauge
	rss        metric.Int64Gauge
	goroutines metric.Int64Gauge
}

func newPerfGauges() (perfGauges, error) {
	meter := otel.Meter("inventory.perf_stats")

	var g perfGauges
	var err error
	if g.cpu, err = meter.Float64Gauge("cpu_usage"); err != nil {
		return g, err
	}
	if g.allocated, err = meter.Int64Gauge("allocated_mb"); err != nil {
		return g, err
	}
	if g.rss, err = meter.Int64Gauge("rss_mb"); err != nil {
		return g, err
	}
	if g.goroutines, err = meter.Int64Gauge("goroutine_count"); err != nil {
		return g, err
	}
	return g, nil
}

// InstrumentPerfStats samples process statistics every interval until ctx
// is done. Gauges are created against the meter provider installed at call
// time, so call it after Setup.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	gauges, err := newPerfGauges()
	if err != nil {
		slog.WarnContext(ctx, "failed to create perf stat gauges", "err", err)
		return
	}
	if interval <= 0 {
		interval = time.Second * 30
	}
	proc, procErr := process.NewProcessWithContext(ctx, int32(os.Getpid()))

	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)
				gauges.allocated.Record(ctx, int64(memStats.Alloc/1_000_000))
				gauges.goroutines.Record(ctx, int64(runtime.NumGoroutine()))

				// a zero interval compares against the previous call instead of blocking
				usage, err := cpu.PercentWithContext(ctx, 0, false)
				if err == nil && len(usage) > 0 {
					gauges.cpu.Record(ctx, usage[0])
				} else if err != nil {
					slog.DebugContext(ctx, "failed to read cpu usage", "err", err)
				}

				if procErr == nil {
					mem, err := proc.MemoryInfoWithContext(ctx)
					if err == nil {
						gauges.rss.Record(ctx, int64(mem.RSS/1_000_000))
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
