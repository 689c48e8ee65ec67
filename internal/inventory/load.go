package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inventory-scrapers/lib/configutil"

	"dario.cat/mergo"
)

const maxExtendsDepth = 8

// LoadBrand reads a brand file (json5 or yaml), resolves its `extends`
// chain, applies defaults and checks the result.
func LoadBrand(path string) (BrandConfig, error) {
	cfg, err := readBrand(path, 0)
	if err != nil {
		return BrandConfig{}, err
	}
	if cfg.Brand == "" {
		cfg.Brand = BrandFromPath(path)
	}
	cfg.SetDefaults()
	if err := cfg.Check(); err != nil {
		return BrandConfig{}, fmt.Errorf("brand %s: %w", path, err)
	}
	return cfg, nil
}

func readBrand(path string, depth int) (BrandConfig, error) {
	if depth > maxExtendsDepth {
		return BrandConfig{}, fmt.Errorf("%s: extends chain is too deep", path)
	}
	cfg, err := configutil.ReadConfig[BrandConfig](path)
	if err != nil {
		return BrandConfig{}, fmt.Errorf("read brand %s: %w", path, err)
	}
	if cfg.Extends == "" {
		return cfg, nil
	}

	basePath := cfg.Extends
	if !filepath.IsAbs(basePath) {
		basePath = filepath.Join(filepath.Dir(path), basePath)
	}
	base, err := readBrand(basePath, depth+1)
	if err != nil {
		return BrandConfig{}, err
	}
	err = mergo.Merge(&base, cfg, mergo.WithOverride)
	if err != nil {
		return BrandConfig{}, fmt.Errorf("extend %s: %w", path, err)
	}
	base.Extends = ""
	return base, nil
}

// BrandFromPath derives a brand name from a file name, "brands/dl1961.json5" -> "dl1961".
func BrandFromPath(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// ListBrands returns the brand files in dir, skipping local overrides and
// files starting with "_" (shared bases).
func ListBrands(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || strings.Contains(name, ".local.") {
			continue
		}
		switch filepath.Ext(name) {
		case ".json5", ".json", ".yaml", ".yml":
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}
