package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"inventory-scrapers/lib/configutil"
)

// Telemetry holds the installed providers, both are nil when no exporter
// is configured and the global no-op providers stay in place.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errlist []error
	if t.TracerProvider != nil {
		err := t.TracerProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	if t.MeterProvider != nil {
		err := t.MeterProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}

var testSetup sync.Map

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once. a missing telemetry.json5 only initializes logging.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if _, loaded := testSetup.LoadOrStore(serviceName, true); loaded {
		return func() {}
	}
	InitSlog(SlogOptions{Verbose: true})

	tel, err := SetupFromEnv(context.Background(), Service{Name: serviceName})
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Log("telemetry shutdown", err)
		}
	}
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry
func SetupFromEnv(ctx context.Context, service Service) (Telemetry, error) {
	cfg, err := configutil.ReadRecursively[config]("telemetry.json5")
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, service, cfg)
}

func Setup(ctx context.Context, service Service, cfg config) (Telemetry, error) {
	if !cfg.Otlp.Traces.configured() && !cfg.Otlp.Metrics.configured() {
		slog.Debug("no otlp endpoints configured, telemetry disabled")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := service.resource(cfg.Attributes)
	if err != nil {
		return Telemetry{}, err
	}

	var out Telemetry
	if cfg.Otlp.Traces.configured() {
		out.TracerProvider, err = newTraceProvider(ctx, r, cfg)
		if err != nil {
			return Telemetry{}, err
		}
		otel.SetTracerProvider(out.TracerProvider)
		slog.Debug(
			"trace exporter initialized",
			"protocol", cfg.Otlp.Traces.protocol(),
			"endpoint", cfg.Otlp.Traces.endpoint(),
			"sample_ratio", cfg.SampleRatio,
		)
	}
	if cfg.Otlp.Metrics.configured() {
		out.MeterProvider, err = newMetricProvider(ctx, r, cfg)
		if err != nil {
			return out, err
		}
		otel.SetMeterProvider(out.MeterProvider)
		slog.Debug(
			"metric exporter initialized",
			"protocol", cfg.Otlp.Metrics.protocol(),
			"endpoint", cfg.Otlp.Metrics.endpoint(),
			"interval", cfg.metricInterval(),
		)
	}
	return out, nil
}
