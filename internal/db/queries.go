package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createRun = `insert into runs (id, brand, started_at, status) values (?, ?, ?, ?)`

type CreateRunParams struct {
	ID        string
	Brand     string
	StartedAt int64
	Status    RunStatus
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun, arg.ID, arg.Brand, arg.StartedAt, arg.Status)
	return err
}

const finishRun = `update runs
set finished_at = ?, status = ?, records = ?, rejected = ?, output = ?, error = ?
where id = ?`

type FinishRunParams struct {
	ID         string
	FinishedAt int64
	Status     RunStatus
	Records    int64
	Rejected   int64
	Output     string
	Error      string
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, finishRun,
		arg.FinishedAt,
		arg.Status,
		arg.Records,
		arg.Rejected,
		arg.Output,
		arg.Error,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertSnapshot = `insert or replace into snapshots (run_id, join_key, style_key, quantity, available)
values (?, ?, ?, ?, ?)`

func (q *Queries) InsertSnapshot(ctx context.Context, arg Snapshot) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot,
		arg.RunID,
		arg.JoinKey,
		arg.StyleKey,
		arg.Quantity,
		arg.Available,
	)
	return err
}

const latestSucceededRun = `select id from runs
where brand = ? and status = 'succeeded'
order by started_at desc
limit 1`

func (q *Queries) LatestSucceededRun(ctx context.Context, brand string) (string, error) {
	row := q.db.QueryRowContext(ctx, latestSucceededRun, brand)
	var id string
	err := row.Scan(&id)
	return id, err
}

const snapshotQuantities = `select join_key, quantity from snapshots
where run_id = ? and quantity is not null
order by join_key`

type SnapshotQuantitiesRow struct {
	JoinKey  string
	Quantity int64
}

func (q *Queries) SnapshotQuantities(ctx context.Context, runID string) ([]SnapshotQuantitiesRow, error) {
	rows, err := q.db.QueryContext(ctx, snapshotQuantities, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotQuantitiesRow
	for rows.Next() {
		var i SnapshotQuantitiesRow
		if err := rows.Scan(&i.JoinKey, &i.Quantity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRuns = `select id, brand, started_at, finished_at, status, records, rejected, output, error
from runs
where brand = ?
order by started_at desc
limit ?`

type ListRunsParams struct {
	Brand string
	Limit int64
}

func (q *Queries) ListRuns(ctx context.Context, arg ListRunsParams) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, arg.Brand, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.Brand,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Status,
			&i.Records,
			&i.Rejected,
			&i.Output,
			&i.Error,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
