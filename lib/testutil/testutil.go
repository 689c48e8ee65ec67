package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	devenv "inventory-scrapers/dev/env"
	"inventory-scrapers/lib/telemetry"

	_ "modernc.org/sqlite"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

// SetupService initializes test telemetry and, when a schema is given, an
// sqlite database with the schema applied. The database is closed on cleanup.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	t.Cleanup(telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name)))

	if params.DbSchema == "" {
		return ServiceResult{}
	}

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every pooled connection to :memory: would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(params.DbSchema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatal(err)
	}

	return ServiceResult{DB: db}
}
