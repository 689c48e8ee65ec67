package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestScrapeAllKeepsEveryOutcome(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "amo.json5"),
		filepath.Join(dir, "dl1961.json5"),
		filepath.Join(dir, "paige.json5"),
	}

	outcomes := scrapeAll(context.Background(), paths, ScrapeOptions{OutDir: dir, Parallel: 2}, nil)
	require.Len(t, outcomes, 3)

	var brands []string
	for _, o := range outcomes {
		require.Error(t, o.err)
		require.Zero(t, o.result.Written)
		brands = append(brands, o.brand)
	}
	require.Empty(t, cmp.Diff([]string{"amo", "dl1961", "paige"}, brands))
}

func TestScrapeAllRunsWithoutParallelism(t *testing.T) {
	outcomes := scrapeAll(context.Background(), []string{"missing.json5"}, ScrapeOptions{}, nil)
	require.Len(t, outcomes, 1)
	require.Equal(t, "missing", outcomes[0].brand)
	require.Error(t, outcomes[0].err)
}

func TestCommandBrands(t *testing.T) {
	args := []string{"brands/amo.json5", "brands/dl1961.local.json5"}
	require.Equal(t, []string{"amo", "dl1961"}, commandBrands(scrapeCmd, args))
	require.Equal(t, []string{"amo", "dl1961"}, commandBrands(checkCmd, args))
	require.Equal(t, []string{"amo"}, commandBrands(historyCmd, []string{"amo"}))
	require.Nil(t, commandBrands(brandsCmd, nil))
}
