package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"inventory-scrapers/internal/db"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) Store {
	res := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "history",
		DbSchema: db.Schema,
	})
	return NewStore(res.DB)
}

func record(joinKey, style string, qty int64) inventory.CanonicalRecord {
	return inventory.CanonicalRecord{
		JoinKey:           joinKey,
		StyleId:           style,
		QuantityAvailable: sql.NullInt64{Int64: qty, Valid: true},
	}
}

func TestLatestQuantities(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	quantities, err := store.LatestQuantities(ctx, "amo")
	require.NoError(t, err)
	require.Empty(t, quantities)

	base := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	runs := []struct {
		at      time.Time
		status  inventory.RunStatus
		records []inventory.CanonicalRecord
	}{
		{base, inventory.RunSucceeded, []inventory.CanonicalRecord{record("variant:1", "7", 4), record("variant:2", "7", 1)}},
		{base.Add(time.Hour), inventory.RunSucceeded, []inventory.CanonicalRecord{record("variant:1", "7", 2), {JoinKey: "variant:3"}}},
		{base.Add(2 * time.Hour), inventory.RunFailed, []inventory.CanonicalRecord{record("variant:1", "7", 99)}},
	}
	for _, r := range runs {
		info := inventory.RunInfo{ID: uuid.New(), Brand: "amo", StartedAt: r.at}
		require.NoError(t, store.BeginRun(ctx, info))
		require.NoError(t, store.SaveSnapshots(ctx, info, r.records))
		require.NoError(t, store.FinishRun(ctx, info.ID, inventory.RunOutcome{
			Status:     r.status,
			FinishedAt: r.at.Add(time.Minute),
			Records:    len(r.records),
		}))
	}

	quantities, err = store.LatestQuantities(ctx, "amo")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"variant:1": 2}, quantities)

	other, err := store.LatestQuantities(ctx, "dl1961")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	started := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	first := inventory.RunInfo{ID: uuid.New(), Brand: "amo", StartedAt: started}
	second := inventory.RunInfo{ID: uuid.New(), Brand: "amo", StartedAt: started.Add(time.Hour)}
	require.NoError(t, store.BeginRun(ctx, first))
	require.NoError(t, store.FinishRun(ctx, first.ID, inventory.RunOutcome{
		Status:     inventory.RunFailed,
		FinishedAt: started.Add(time.Minute),
		Error:      "catalog: fatal fetch error",
	}))
	require.NoError(t, store.BeginRun(ctx, second))

	runs, err := store.Runs(ctx, "amo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second.ID, runs[0].ID)
	require.Equal(t, inventory.RunRunning, runs[0].Status)
	require.True(t, runs[0].FinishedAt.IsZero())
	require.Equal(t, inventory.RunFailed, runs[1].Status)
	require.Equal(t, "catalog: fatal fetch error", runs[1].Error)
	require.True(t, runs[1].StartedAt.Equal(started))

	runs, err = store.Runs(ctx, "amo", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	err = store.FinishRun(ctx, uuid.New(), inventory.RunOutcome{Status: inventory.RunSucceeded})
	require.ErrorContains(t, err, "never started")
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	cfg := Config{File: filepath.Join(t.TempDir(), "state", "history.db")}
	require.True(t, cfg.Enabled())

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	info := inventory.RunInfo{ID: uuid.New(), Brand: "amo", StartedAt: time.Now()}
	require.NoError(t, store.BeginRun(ctx, info))
	require.NoError(t, store.Close())

	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(ctx, "amo", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.False(t, Config{}.Enabled())
	_, err = Config{}.OpenDB()
	require.Error(t, err)
}
