package registry

import (
	"testing"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	cfg := inventory.BrandConfig{
		Brand: "dl1961",
		Sources: []inventory.SourceConfig{
			{Name: "catalog", Type: "catalog", Hosts: []string{"https://dl1961.example"}},
			{Name: "search", Type: "search", Hosts: []string{"https://search.example"}, ResultsPath: "results"},
			{Name: "storefront", Type: "graphql", Hosts: []string{"https://dl1961.example"}},
			{Name: "pages", Type: "detail", Hosts: []string{"https://dl1961.example"}, Path: "/products/{key}", DependsOn: "catalog", KeyPath: "product.handle"},
			{Name: "previous", Type: "history"},
		},
	}
	built, err := Build(cfg, sources.Deps{Brand: "dl1961", Session: resty.New(), API: &telemetry.Recorder{}})
	require.NoError(t, err)
	require.Len(t, built, 5)

	for i, src := range built {
		require.Equal(t, cfg.Sources[i].Name, src.Name())
	}
	_, ok := built[3].(sources.Dependent)
	require.True(t, ok)
	_, ok = built[4].(sources.Lister)
	require.True(t, ok)

	require.Equal(t, []string{"catalog", "detail", "graphql", "history", "search"}, Types())
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(inventory.BrandConfig{Sources: []inventory.SourceConfig{{Name: "x", Type: "rss"}}}, sources.Deps{})
	require.ErrorContains(t, err, "unknown type")

	_, err = Build(inventory.BrandConfig{Sources: []inventory.SourceConfig{{Name: "x", Type: "search"}}}, sources.Deps{})
	require.ErrorContains(t, err, "results_path")
}
