package reconcile

import (
	"fmt"
	"regexp"
	"sort"

	"inventory-scrapers/internal/classify"
	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/internal/telemetry"
)

type keySpec struct {
	name      string
	paths     []string
	normalize normalize.Func
}

type source struct {
	name string
	keys []keySpec
}

type fieldRule struct {
	column     inventory.Column
	extractors []extract.Extractor
	normalizes []normalize.Func
}

type derivedColumn struct {
	inventory.DerivedColumn
	refs []inventory.Column
}

// Reconciler merges the records of one brand run. It is compiled once from
// the brand config and holds no per-run state.
type Reconciler struct {
	primary    source
	secondary  []source
	fields     []fieldRule
	exclude    []predicate
	include    []predicate
	fallbacks  []inventory.OptionFallback
	derived    []derivedColumn
	tables     []classify.Table
	aggregates []inventory.Aggregate
	api        telemetry.API
}

var templateRef = regexp.MustCompile(`\{([^{}]+)\}`)

func compileKeys(sc inventory.SourceConfig) ([]keySpec, error) {
	var out []keySpec
	for _, k := range sc.Keys {
		norm := normalize.ForKind(inventory.KindIdentifier)
		if k.Normalizer != "" {
			fn, err := normalize.Lookup(k.Normalizer)
			if err != nil {
				return nil, fmt.Errorf("source %s key %s: %w", sc.Name, k.Name, err)
			}
			norm = fn
		}
		out = append(out, keySpec{name: k.Name, paths: k.Paths, normalize: norm})
	}
	return out, nil
}

// Compile checks every reference in cfg (columns, normalizers, regexes,
// tables) and prepares the merge.
func Compile(cfg inventory.BrandConfig, api telemetry.API) (*Reconciler, error) {
	r := &Reconciler{
		fallbacks:  cfg.OptionFallback,
		aggregates: cfg.Aggregates,
		api:        api,
	}

	for _, sc := range cfg.Sources {
		keys, err := compileKeys(sc)
		if err != nil {
			return nil, err
		}
		s := source{name: sc.Name, keys: keys}
		if sc.Name == cfg.Primary {
			r.primary = s
			continue
		}
		r.secondary = append(r.secondary, s)
	}
	if r.primary.name == "" {
		return nil, fmt.Errorf("primary source %q is not configured", cfg.Primary)
	}

	names := make([]string, 0, len(cfg.Fields))
	for name := range cfg.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := cfg.Fields[name]
		col, err := inventory.ParseColumn(name)
		if err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
		fieldNorm := normalize.ForKind(col.Kind())
		if rule.Normalizer != "" {
			fieldNorm, err = normalize.Lookup(rule.Normalizer)
			if err != nil {
				return nil, fmt.Errorf("fields.%s: %w", name, err)
			}
		}
		f := fieldRule{column: col}
		for _, e := range rule.From {
			x, err := extract.Compile(e)
			if err != nil {
				return nil, fmt.Errorf("fields.%s: %w", name, err)
			}
			norm := fieldNorm
			if e.Normalizer != "" {
				norm, _ = normalize.Lookup(e.Normalizer)
			}
			f.extractors = append(f.extractors, x)
			f.normalizes = append(f.normalizes, norm)
		}
		r.fields = append(r.fields, f)
	}
	sort.SliceStable(r.fields, func(i, j int) bool {
		return r.fields[i].column < r.fields[j].column
	})

	for i, p := range cfg.Exclude {
		compiled, err := compilePredicate(p)
		if err != nil {
			return nil, fmt.Errorf("exclude[%d]: %w", i, err)
		}
		r.exclude = append(r.exclude, compiled)
	}
	for i, p := range cfg.Include {
		compiled, err := compilePredicate(p)
		if err != nil {
			return nil, fmt.Errorf("include[%d]: %w", i, err)
		}
		r.include = append(r.include, compiled)
	}

	for _, fb := range cfg.OptionFallback {
		if fb.Column.Kind().Storage() != fb.From.Kind().Storage() {
			return nil, fmt.Errorf("option fallback %s <- %s: columns hold different types", fb.Column, fb.From)
		}
	}

	for _, d := range cfg.Derived {
		if d.Column.Kind().Storage() != inventory.StorageString {
			return nil, fmt.Errorf("derived %s: only text columns can be derived", d.Column)
		}
		dc := derivedColumn{DerivedColumn: d}
		for _, m := range templateRef.FindAllStringSubmatch(d.Template, -1) {
			col, err := inventory.ParseColumn(m[1])
			if err != nil {
				return nil, fmt.Errorf("derived %s: %w", d.Column, err)
			}
			dc.refs = append(dc.refs, col)
		}
		r.derived = append(r.derived, dc)
	}

	for _, t := range cfg.Classify {
		table, err := classify.Compile(t)
		if err != nil {
			return nil, err
		}
		r.tables = append(r.tables, table)
	}

	for _, a := range cfg.Aggregates {
		switch a.Func {
		case "sum", "instock_percent":
			if a.Of.Kind().Storage() != inventory.StorageInt {
				return nil, fmt.Errorf("aggregate %s: %s needs a quantity column", a.Column, a.Func)
			}
		case "count":
		default:
			return nil, fmt.Errorf("aggregate %s: unknown func %q", a.Column, a.Func)
		}
		switch a.Column.Kind().Storage() {
		case inventory.StorageInt, inventory.StorageDecimal:
		default:
			return nil, fmt.Errorf("aggregate %s: target must be numeric", a.Column)
		}
	}
	return r, nil
}
