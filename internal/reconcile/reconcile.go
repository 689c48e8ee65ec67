// Package reconcile merges the raw records of every source of a brand run
// into canonical records.
package reconcile

import (
	"sort"
	"strings"

	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/lib/textutil"

	"github.com/antzucaro/matchr"
	"github.com/shopspring/decimal"
)

type Result struct {
	Records []inventory.CanonicalRecord
	// Orphans are secondary records that matched no primary record.
	Orphans     []*inventory.ReconciliationJoinError
	Excluded    int
	Duplicates  int
	MissingKeys int
	FieldErrors int
}

type entry struct {
	joinKey string
	raw     map[string]*inventory.RawRecord
}

// keyValue resolves one key spec against fields, every path must resolve.
func keyValue(spec keySpec, fields map[string]any) (string, bool) {
	parts := make([]string, 0, len(spec.paths))
	for _, path := range spec.paths {
		value, ok := extract.Get(fields, path)
		if !ok {
			return "", false
		}
		normalized, err := spec.normalize(value)
		if err != nil || normalized == nil {
			return "", false
		}
		text, ok := normalize.Text(normalized)
		if !ok {
			return "", false
		}
		parts = append(parts, text)
	}
	return textutil.NormalizeKey(strings.Join(parts, "|")), true
}

// index maps a key name and value to the primary entries holding it.
type index map[string]map[string][]int

func (ix index) add(name, value string, i int) {
	byValue, ok := ix[name]
	if !ok {
		byValue = map[string][]int{}
		ix[name] = byValue
	}
	for _, existing := range byValue[value] {
		if existing == i {
			return
		}
	}
	byValue[value] = append(byValue[value], i)
}

// nearest finds the closest known value of key name, for manual review of
// orphans only.
func (ix index) nearest(name, value string) string {
	values := make([]string, 0, len(ix[name]))
	for v := range ix[name] {
		values = append(values, v)
	}
	sort.Strings(values)
	best := ""
	bestScore := 0.0
	for _, v := range values {
		score := matchr.JaroWinkler(value, v, false)
		if score > bestScore {
			best, bestScore = v, score
		}
	}
	return best
}

// Reconcile merges records, grouped by source name. The output order is the
// primary source's arrival order, so equal inputs give equal outputs.
func (r *Reconciler) Reconcile(records map[string][]inventory.RawRecord) Result {
	var result Result
	entries, ix := r.indexPrimary(records[r.primary.name], &result)

	for _, src := range r.secondary {
		r.attach(src, records[src.name], entries, ix, &result)
	}

	var merged []inventory.CanonicalRecord
	for _, e := range entries {
		rec, ok := r.build(e, &result)
		if !ok {
			result.Excluded++
			continue
		}
		merged = append(merged, rec)
	}
	r.Aggregate(merged)
	result.Records = merged
	return result
}

func (r *Reconciler) indexPrimary(primary []inventory.RawRecord, result *Result) ([]*entry, index) {
	ix := index{}
	seen := map[string]bool{}
	var entries []*entry
	for i := range primary {
		raw := &primary[i]

		joinKey := ""
		aliases := map[string]string{}
		for _, spec := range r.primary.keys {
			value, ok := keyValue(spec, raw.Fields)
			if !ok {
				continue
			}
			if _, exists := aliases[spec.name]; !exists {
				aliases[spec.name] = value
			}
			if joinKey == "" {
				joinKey = spec.name + ":" + value
			}
		}
		if joinKey == "" {
			result.MissingKeys++
			r.api.ReportWarning("missing-key", "source", r.primary.name)
			continue
		}
		if seen[joinKey] {
			result.Duplicates++
			r.api.ReportDebug("duplicate", "source", r.primary.name, "join_key", joinKey)
			continue
		}
		seen[joinKey] = true

		raw.JoinKey = joinKey
		n := len(entries)
		entries = append(entries, &entry{
			joinKey: joinKey,
			raw:     map[string]*inventory.RawRecord{r.primary.name: raw},
		})
		for name, value := range aliases {
			ix.add(name, value, n)
		}
		ix.add(inventory.JoinAlias, textutil.NormalizeKey(joinKey), n)
	}
	return entries, ix
}

func (r *Reconciler) attach(src source, records []inventory.RawRecord, entries []*entry, ix index, result *Result) {
	primaryKeys := map[string]bool{inventory.JoinAlias: true}
	for _, spec := range r.primary.keys {
		primaryKeys[spec.name] = true
	}

	attached := 0
	for i := range records {
		raw := &records[i]

		// the first key that resolves decides the match
		var matches []int
		firstKey, firstName := "", ""
		for _, spec := range src.keys {
			if !primaryKeys[spec.name] {
				continue
			}
			value, ok := keyValue(spec, raw.Fields)
			if !ok {
				continue
			}
			firstKey, firstName = value, spec.name
			matches = ix[spec.name][value]
			if len(matches) > 0 {
				raw.JoinKey = spec.name + ":" + value
			}
			break
		}

		if len(matches) == 0 {
			orphan := &inventory.ReconciliationJoinError{Source: src.name, Key: firstKey}
			if firstKey != "" {
				orphan.Key = firstName + ":" + firstKey
				orphan.Nearest = ix.nearest(firstName, firstKey)
			}
			result.Orphans = append(result.Orphans, orphan)
			r.api.ReportWarning(
				"orphan",
				"source", src.name,
				"key", orphan.Key,
				"nearest", orphan.Nearest,
			)
			continue
		}

		for _, n := range matches {
			if _, exists := entries[n].raw[src.name]; exists {
				continue
			}
			entries[n].raw[src.name] = raw
			attached++
		}
	}
	r.api.ReportDebug("attached", "source", src.name, "records", len(records), "matched", attached)
}

// build merges one entry. It reports false when the record is excluded.
func (r *Reconciler) build(e *entry, result *Result) (inventory.CanonicalRecord, bool) {
	rec := inventory.CanonicalRecord{JoinKey: e.joinKey}

	for _, f := range r.fields {
		for i, x := range f.extractors {
			raw := e.raw[x.Source]
			if raw == nil && x.Source != "" {
				continue
			}
			var fields map[string]any
			if raw != nil {
				fields = raw.Fields
			}
			value, ok := x.Extract(fields)
			if !ok {
				continue
			}
			normalized, err := f.normalizes[i](value)
			if err != nil {
				if clamped, isClamped := normalize.IsClamped(err); isClamped {
					normalized = clamped
					r.api.ReportWarning("clamped", "join_key", e.joinKey, "column", f.column, "source", x.Source, "err", err)
				} else {
					result.FieldErrors++
					r.api.ReportDebug("field-error", "join_key", e.joinKey, "column", f.column, "source", x.Source, "err", err)
					continue
				}
			}
			if normalized == nil {
				continue
			}
			err = rec.Set(f.column, normalized)
			if err != nil {
				result.FieldErrors++
				r.api.ReportWarning("field-type", "join_key", e.joinKey, "column", f.column, "err", err)
				continue
			}
			break
		}
	}

	for _, p := range r.exclude {
		if p.match(&rec, e.raw) {
			r.api.ReportDebug("excluded", "join_key", e.joinKey, "handle", rec.Handle)
			return rec, false
		}
	}
	if len(r.include) > 0 {
		included := false
		for _, p := range r.include {
			if p.match(&rec, e.raw) {
				included = true
				break
			}
		}
		if !included {
			r.api.ReportDebug("not-included", "join_key", e.joinKey, "handle", rec.Handle)
			return rec, false
		}
	}

	for _, fb := range r.fallbacks {
		if rec.IsBlank(fb.Column) && !rec.IsBlank(fb.From) {
			_ = rec.Set(fb.Column, rec.Get(fb.From))
		}
	}

	for _, d := range r.derived {
		if !d.Overwrite && !rec.IsBlank(d.Column) {
			continue
		}
		if value, ok := render(d, &rec); ok {
			_ = rec.Set(d.Column, value)
		}
	}

	for _, t := range r.tables {
		t.Apply(&rec)
	}
	return rec, true
}

// render fills a derived template, it fails when a referenced column is
// blank.
func render(d derivedColumn, rec *inventory.CanonicalRecord) (string, bool) {
	for _, c := range d.refs {
		if rec.IsBlank(c) {
			return "", false
		}
	}
	return templateRef.ReplaceAllStringFunc(d.Template, func(ref string) string {
		col, err := inventory.ParseColumn(ref[1 : len(ref)-1])
		if err != nil {
			return ref
		}
		return rec.Cell(col)
	}), true
}

// Aggregate computes every style level value once per style over records
// and writes it to each variant of the style, replacing earlier values.
// Callers that drop records after Reconcile run it again on what remains.
func (r *Reconciler) Aggregate(records []inventory.CanonicalRecord) {
	if len(r.aggregates) == 0 {
		return
	}
	styles := map[string][]int{}
	var order []string
	for i := range records {
		key := records[i].StyleKey()
		if _, ok := styles[key]; !ok {
			order = append(order, key)
		}
		styles[key] = append(styles[key], i)
	}

	for _, a := range r.aggregates {
		for _, key := range order {
			members := styles[key]
			var value decimal.Decimal
			switch a.Func {
			case "sum":
				total := int64(0)
				for _, i := range members {
					if q, ok := records[i].Get(a.Of).(int64); ok {
						total += q
					}
				}
				value = decimal.NewFromInt(total)
			case "count":
				value = decimal.NewFromInt(int64(len(members)))
			case "instock_percent":
				inStock := 0
				for _, i := range members {
					if q, ok := records[i].Get(a.Of).(int64); ok && q > 0 {
						inStock++
					}
				}
				value = decimal.NewFromInt(int64(inStock * 100)).
					DivRound(decimal.NewFromInt(int64(len(members))), 2)
			}

			var cell any = value
			if a.Column.Kind().Storage() == inventory.StorageInt {
				cell = value.IntPart()
			}
			for _, i := range members {
				_ = records[i].Set(a.Column, cell)
			}
		}
	}
}
