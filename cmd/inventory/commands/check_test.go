package commands

import (
	"path/filepath"
	"testing"

	"inventory-scrapers/internal/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundledBrandsBuild(t *testing.T) {
	t.Setenv("DL1961_STOREFRONT_TOKEN", "test-token")

	paths, err := inventory.ListBrands(filepath.Join("..", "..", "..", "brands"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := checkBrand(path)
			require.NoError(t, err)
			assert.Equal(t, inventory.BrandFromPath(path), cfg.Brand)
			assert.NotEmpty(t, cfg.Output.Prefix)
			assert.Contains(t, cfg.Output.Columns, inventory.QuantityOfStyle)
		})
	}
}

func TestBrandExtendsSharedBase(t *testing.T) {
	cfg, err := checkBrand(filepath.Join("..", "..", "..", "brands", "amo.json5"))
	require.NoError(t, err)

	// timezone overridden, retry and output columns inherited
	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 5, *cfg.Retry.MaxRetries)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "AMO", cfg.Output.Prefix)
	assert.Equal(t, []inventory.Column{inventory.Handle, inventory.SkuShopify}, cfg.Required)

	hosts := cfg.Sources[0].Hosts
	assert.Equal(t, []string{"https://amodenim.com", "https://www.amodenim.com"}, hosts)
}
