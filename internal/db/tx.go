package db

import (
	"context"
	"database/sql"
	"errors"
)

// MakeTx begins a transaction bound to ctx. discard is safe to defer, it is
// a no-op once commit succeeded.
type MakeTx = func(ctx context.Context) (tx *Queries, discard, commit func() error, err error)

func NewMakeTx(conn *sql.DB) MakeTx {
	return func(ctx context.Context) (*Queries, func() error, func() error, error) {
		sqltx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		discard := func() error {
			err := sqltx.Rollback()
			if errors.Is(err, sql.ErrTxDone) {
				return nil
			}
			return err
		}
		return New(sqltx), discard, sqltx.Commit, nil
	}
}
