package db

import "database/sql"

type Run struct {
	ID         string
	Brand      string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Status     RunStatus
	Records    int64
	Rejected   int64
	Output     string
	Error      string
}

type Snapshot struct {
	RunID     string
	JoinKey   string
	StyleKey  string
	Quantity  sql.NullInt64
	Available sql.NullBool
}
