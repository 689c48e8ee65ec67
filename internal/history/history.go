// Package history keeps past runs and the quantities they observed.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"inventory-scrapers/internal/db"
	"inventory-scrapers/internal/inventory"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/history")

// Config selects a local sqlite file or a remote libsql database, Url wins
// when both are set.
type Config struct {
	File      string `json:"file" env:"INVENTORY_HISTORY_FILE"`
	Url       string `json:"url" env:"INVENTORY_HISTORY_URL"`
	AuthToken string `json:"auth_token" env:"INVENTORY_HISTORY_TOKEN"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

func (c Config) OpenDB() (*sql.DB, error) {
	if c.Url != "" {
		dsn := c.Url
		if c.AuthToken != "" {
			u, err := url.Parse(c.Url)
			if err != nil {
				return nil, fmt.Errorf("history url: %w", err)
			}
			q := u.Query()
			q.Set("authToken", c.AuthToken)
			u.RawQuery = q.Encode()
			dsn = u.String()
		}
		return sql.Open("libsql", dsn)
	}
	if c.File == "" {
		return nil, fmt.Errorf("a history file or url was not specified")
	}

	err := os.MkdirAll(filepath.Dir(c.File), 0755)
	if err != nil {
		return nil, err
	}
	database, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

type Store struct {
	db     *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
}

// Open connects and applies the schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	database, err := cfg.OpenDB()
	if err != nil {
		return Store{}, err
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("apply history schema: %w", err)
	}
	return NewStore(database), nil
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:     database,
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) BeginRun(ctx context.Context, run inventory.RunInfo) error {
	ctx, span := tracer.Start(ctx, "BeginRun")
	defer span.End()
	span.SetAttributes(attribute.String("brand", run.Brand))

	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:        run.ID.String(),
		Brand:     run.Brand,
		StartedAt: run.StartedAt.UnixMilli(),
		Status:    db.RunRunning,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create run")
		return err
	}
	return nil
}

func (s Store) FinishRun(ctx context.Context, id uuid.UUID, outcome inventory.RunOutcome) error {
	ctx, span := tracer.Start(ctx, "FinishRun")
	defer span.End()

	n, err := s.qry.FinishRun(ctx, db.FinishRunParams{
		ID:         id.String(),
		FinishedAt: outcome.FinishedAt.UnixMilli(),
		Status:     db.RunStatus(outcome.Status),
		Records:    int64(outcome.Records),
		Rejected:   int64(outcome.Rejected),
		Output:     outcome.Output,
		Error:      outcome.Error,
	})
	if err == nil && n == 0 {
		err = fmt.Errorf("run %s was never started", id)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finish run")
		return err
	}
	return nil
}

func (s Store) SaveSnapshots(ctx context.Context, run inventory.RunInfo, records []inventory.CanonicalRecord) error {
	ctx, span := tracer.Start(ctx, "SaveSnapshots")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(records)))

	txqry, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin tx")
		return err
	}
	defer discard()

	for _, rec := range records {
		err = txqry.InsertSnapshot(ctx, db.Snapshot{
			RunID:     run.ID.String(),
			JoinKey:   rec.JoinKey,
			StyleKey:  rec.StyleKey(),
			Quantity:  rec.QuantityAvailable,
			Available: rec.AvailableForSale,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert snapshot")
			return err
		}
	}
	err = commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit")
		return err
	}
	return nil
}

func (s Store) LatestQuantities(ctx context.Context, brand string) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "LatestQuantities")
	defer span.End()

	runID, err := s.qry.LatestSucceededRun(ctx, brand)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]int64{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "latest run")
		return nil, err
	}

	rows, err := s.qry.SnapshotQuantities(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot quantities")
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.JoinKey] = r.Quantity
	}
	return out, nil
}

type RunRecord struct {
	inventory.RunInfo
	inventory.RunOutcome
}

// Runs lists the most recent runs of brand, newest first.
func (s Store) Runs(ctx context.Context, brand string, limit int) ([]RunRecord, error) {
	rows, err := s.qry.ListRuns(ctx, db.ListRunsParams{Brand: brand, Limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", r.ID, err)
		}
		rec := RunRecord{
			RunInfo: inventory.RunInfo{
				ID:        id,
				Brand:     r.Brand,
				StartedAt: time.UnixMilli(r.StartedAt),
			},
			RunOutcome: inventory.RunOutcome{
				Status:   inventory.RunStatus(r.Status),
				Records:  int(r.Records),
				Rejected: int(r.Rejected),
				Output:   r.Output,
				Error:    r.Error,
			},
		}
		if r.FinishedAt.Valid {
			rec.FinishedAt = time.UnixMilli(r.FinishedAt.Int64)
		}
		out = append(out, rec)
	}
	return out, nil
}
