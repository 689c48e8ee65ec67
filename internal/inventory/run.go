package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink persists the reconciled records of one run and returns where they
// went.
type Sink interface {
	Write(ctx context.Context, brand string, columns []Column, records []CanonicalRecord) (string, error)
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type RunInfo struct {
	ID        uuid.UUID
	Brand     string
	StartedAt time.Time
}

type RunOutcome struct {
	Status     RunStatus
	FinishedAt time.Time
	Records    int
	Rejected   int
	Output     string
	Error      string
}

// RunHistory records past runs and the quantities they observed, feeding
// OldQuantityAvailable on the next run.
type RunHistory interface {
	BeginRun(ctx context.Context, run RunInfo) error
	FinishRun(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	SaveSnapshots(ctx context.Context, run RunInfo, records []CanonicalRecord) error
	// LatestQuantities maps join key to the quantity seen by the brand's most
	// recent successful run.
	LatestQuantities(ctx context.Context, brand string) (map[string]int64, error)
}

// Run identifies one brand execution.
type Run struct {
	RunInfo
	Config   BrandConfig
	Location *time.Location
}

func NewRun(cfg BrandConfig, loc *time.Location, now time.Time) Run {
	return Run{
		RunInfo: RunInfo{
			ID:        uuid.New(),
			Brand:     cfg.Brand,
			StartedAt: now.In(loc),
		},
		Config:   cfg,
		Location: loc,
	}
}
