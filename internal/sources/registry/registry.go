// Package registry builds source adapters from brand config by type.
package registry

import (
	"fmt"
	"sort"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/sources/catalog"
	"inventory-scrapers/internal/sources/detail"
	"inventory-scrapers/internal/sources/graphql"
	"inventory-scrapers/internal/sources/previous"
	"inventory-scrapers/internal/sources/search"
)

type Factory func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error)

var Factories = map[string]Factory{
	"catalog": func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error) {
		return catalog.New(cfg, deps)
	},
	"search": func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error) {
		return search.New(cfg, deps)
	},
	"graphql": func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error) {
		return graphql.New(cfg, deps)
	},
	"detail": func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error) {
		return detail.New(cfg, deps)
	},
	"history": func(cfg inventory.SourceConfig, deps sources.Deps) (sources.Source, error) {
		return previous.New(cfg, deps)
	},
}

// Types lists the registered source types.
func Types() []string {
	out := make([]string, 0, len(Factories))
	for t := range Factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build constructs every source of cfg in config order.
func Build(cfg inventory.BrandConfig, deps sources.Deps) ([]sources.Source, error) {
	out := make([]sources.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		factory, ok := Factories[sc.Type]
		if !ok {
			return nil, fmt.Errorf("source %q: unknown type %q", sc.Name, sc.Type)
		}
		src, err := factory(sc, deps)
		if err != nil {
			return nil, err
		}
		_, lister := src.(sources.Lister)
		_, dependent := src.(sources.Dependent)
		if !lister && !dependent {
			return nil, fmt.Errorf("source %q: type %q can neither list nor follow", sc.Name, sc.Type)
		}
		out = append(out, src)
	}
	return out, nil
}
