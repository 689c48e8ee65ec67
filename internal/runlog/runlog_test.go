package runlog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimary(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log := Open(Options{
		Brand:   "amo",
		Dirs:    []string{filepath.Join(dir, "logs"), filepath.Join(dir, "out")},
		Console: slog.NewTextHandler(&console, nil),
	})
	log.Logger.Info("fetched page", "page", 2, "records", 250)
	require.NoError(t, log.Close())

	require.Equal(t, filepath.Join(dir, "logs", "amo_run.log"), log.Path)
	contents, err := os.ReadFile(log.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "fetched page")
	require.Contains(t, string(contents), "brand=amo")
	require.Contains(t, console.String(), "records=250")
}

func TestAppends(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first run", "second run"} {
		log := Open(Options{Brand: "amo", Dirs: []string{dir}, Console: slog.NewTextHandler(&bytes.Buffer{}, nil)})
		log.Logger.Info(msg)
		require.NoError(t, log.Close())
	}
	contents, err := os.ReadFile(filepath.Join(dir, "amo_run.log"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "first run")
	require.Contains(t, string(contents), "second run")
}

func TestFallback(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0644))

	var console bytes.Buffer
	log := Open(Options{
		Brand:   "amo",
		Dirs:    []string{blocked, filepath.Join(dir, "secondary")},
		Console: slog.NewTextHandler(&console, nil),
	})
	defer log.Close()
	require.Equal(t, filepath.Join(dir, "secondary", "amo_run.log"), log.Path)
	require.Contains(t, console.String(), "run log unavailable")
}

func TestConsoleOnly(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0644))

	var console bytes.Buffer
	log := Open(Options{
		Brand:   "amo",
		Dirs:    []string{blocked},
		Console: slog.NewTextHandler(&console, nil),
	})
	require.Empty(t, log.Path)
	log.Logger.Info("still logging")
	require.NoError(t, log.Close())
	require.Contains(t, console.String(), "console only")
	require.Contains(t, console.String(), "still logging")
}
