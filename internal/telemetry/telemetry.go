package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics for pipeline components.
// This allows for assertions and tests for working logging/metrics to exist.
//
// params are slog style key/value pairs.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed
	ReportBroken(id string, params ...any)

	// ReportWarning reports a scenario that does not necessarily indicate brokenness, but may be subject to investigation
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress useful when diagnosing a run (pages, retries)
	ReportDebug(id string, params ...any)

	// ReportCount reports the current count of a specific event at the current time, these counts should
	// not be summed but interpreted as points of data over time.
	ReportCount(id string, count int64)
}

// ScopedAPI attaches a namespace to every id reported through it, kind of
// like creating a "sub" logger with a prefix.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) id(id string) string {
	return fmt.Sprintf("%s:%s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.id(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.id(id), params...)
}

func (s ScopedAPI) ReportDebug(id string, params ...any) {
	s.inner.ReportDebug(s.id(id), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.id(id), count)
}

// Fanout reports every event to each of its members.
type Fanout []API

func (f Fanout) ReportBroken(id string, params ...any) {
	for _, api := range f {
		api.ReportBroken(id, params...)
	}
}

func (f Fanout) ReportWarning(id string, params ...any) {
	for _, api := range f {
		api.ReportWarning(id, params...)
	}
}

func (f Fanout) ReportDebug(id string, params ...any) {
	for _, api := range f {
		api.ReportDebug(id, params...)
	}
}

func (f Fanout) ReportCount(id string, count int64) {
	for _, api := range f {
		api.ReportCount(id, count)
	}
}
