package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	devenv "inventory-scrapers/dev/env"
	"inventory-scrapers/internal/db"
)

const historyDb = "history.db"

func createDb(filename, schema string) error {
	path, err := devenv.ResolvePath(filepath.Join(devenv.StatePrefix, filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Exec(schema)
	return err
}

func CreateHistoryDB() error {
	return createDb(historyDb, db.Schema)
}

// WriteDotenv points the history store at the dev database unless a .env
// already exists.
func WriteDotenv() error {
	_, err := os.Stat(".env")
	if err == nil {
		fmt.Println(".env already exists, leaving it alone")
		return nil
	}
	path, err := devenv.ResolvePath(filepath.Join(devenv.StatePrefix, historyDb))
	if err != nil {
		return err
	}
	contents := fmt.Sprintf(
		"INVENTORY_HISTORY_FILE=%s\nINVENTORY_OUT_DIR=%s\n",
		path,
		filepath.Join(filepath.Dir(path), "out"),
	)
	return os.WriteFile(".env", []byte(contents), 0644)
}

func PrintConfigLocations() {
	dir, err := devenv.StateDir()
	if err != nil {
		return
	}
	fmt.Println("dev state:", dir)
	fmt.Println("brand configs: brands/*.json5 (put secrets in brands/<brand>.local.json5)")
	fmt.Println("telemetry: telemetry.json5 in the working directory or any parent")
}
