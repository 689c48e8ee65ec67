// Package classify applies brand supplied lookup tables (jean style, inseam
// label, rise label, ...) to merged records. The mappings are business data
// and are taken as given.
package classify

import (
	"fmt"
	"strings"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/textutil"

	"github.com/shopspring/decimal"
)

type rangeCondition struct {
	column   inventory.Column
	min, max decimal.NullDecimal
}

type rule struct {
	inventory.ClassifyRule
	equals map[inventory.Column][]string
	rng    *rangeCondition
}

type Table struct {
	Column    inventory.Column
	rules     []rule
	def       string
	overwrite bool
}

func parseBound(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func Compile(t inventory.ClassifyTable) (Table, error) {
	if t.Column.Kind().Storage() != inventory.StorageString {
		return Table{}, fmt.Errorf("classify %s: only text columns can be classified", t.Column)
	}
	out := Table{Column: t.Column, def: t.Default, overwrite: t.Overwrite}
	for i, r := range t.Rules {
		compiled := rule{ClassifyRule: r}
		if len(r.Equals) > 0 {
			compiled.equals = make(map[inventory.Column][]string, len(r.Equals))
			for name, values := range r.Equals {
				col, err := inventory.ParseColumn(name)
				if err != nil {
					return Table{}, fmt.Errorf("classify %s rule %d: %w", t.Column, i, err)
				}
				compiled.equals[col] = values
			}
		}
		if r.Range != nil {
			if r.Range.Column.Kind().Storage() != inventory.StorageDecimal {
				return Table{}, fmt.Errorf("classify %s rule %d: range needs a decimal column", t.Column, i)
			}
			lo, err := parseBound(r.Range.Min)
			if err != nil {
				return Table{}, fmt.Errorf("classify %s rule %d: min: %w", t.Column, i, err)
			}
			hi, err := parseBound(r.Range.Max)
			if err != nil {
				return Table{}, fmt.Errorf("classify %s rule %d: max: %w", t.Column, i, err)
			}
			compiled.rng = &rangeCondition{column: r.Range.Column, min: lo, max: hi}
		}
		if r.Value == "" && r.TagPrefix == "" {
			return Table{}, fmt.Errorf("classify %s rule %d: value is required", t.Column, i)
		}
		out.rules = append(out.rules, compiled)
	}
	return out, nil
}

func anyTag(tags []string, match func(string) bool) bool {
	for _, tag := range tags {
		if match(strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && textutil.ContainsFold(text, n) {
			return true
		}
	}
	return false
}

// tagRemainder turns "fit:high rise skinny" into "High Rise Skinny" and
// "color:blue=Medium Blue" into "Medium Blue".
func tagRemainder(tag, prefix string) string {
	rest := tag[len(prefix):]
	if i := strings.LastIndex(rest, "="); i >= 0 {
		return textutil.CollapseSpace(rest[i+1:])
	}
	return textutil.Title(rest)
}

// match reports whether every criterion set on the rule holds and the value
// it yields.
func (r rule) match(rec *inventory.CanonicalRecord) (string, bool) {
	value := r.Value

	if len(r.TagsAny) > 0 && !anyTag(rec.Tags, func(tag string) bool {
		for _, want := range r.TagsAny {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
		return false
	}) {
		return "", false
	}
	if r.TagPrefix != "" {
		found := false
		for _, tag := range rec.Tags {
			tag = strings.TrimSpace(tag)
			if len(tag) >= len(r.TagPrefix) && strings.EqualFold(tag[:len(r.TagPrefix)], r.TagPrefix) {
				found = true
				if value == "" {
					value = tagRemainder(tag, r.TagPrefix)
				}
				break
			}
		}
		if !found || value == "" {
			return "", false
		}
	}
	if len(r.TitleContains) > 0 && !textutil.MatchName(rec.Product, r.TitleContains) {
		return "", false
	}
	if len(r.TitleExcludes) > 0 && textutil.MatchName(rec.Product, r.TitleExcludes) {
		return "", false
	}
	if len(r.DescriptionContains) > 0 && !containsAny(rec.Description, r.DescriptionContains) {
		return "", false
	}
	for col, values := range r.equals {
		cell := rec.Cell(col)
		matched := false
		for _, v := range values {
			if strings.EqualFold(cell, v) {
				matched = true
				break
			}
		}
		if !matched {
			return "", false
		}
	}
	if r.rng != nil {
		v, ok := rec.Get(r.rng.column).(decimal.Decimal)
		if !ok {
			return "", false
		}
		if r.rng.min.Valid && v.LessThan(r.rng.min.Decimal) {
			return "", false
		}
		if r.rng.max.Valid && v.GreaterThan(r.rng.max.Decimal) {
			return "", false
		}
	}
	if len(r.SizeSuffix) > 0 {
		size := strings.ToUpper(strings.TrimSpace(rec.Size))
		matched := false
		for _, suffix := range r.SizeSuffix {
			if suffix != "" && strings.HasSuffix(size, strings.ToUpper(suffix)) {
				matched = true
				break
			}
		}
		if !matched {
			return "", false
		}
	}
	return value, true
}

// Classify returns the value of the first matching rule, or the table's
// default.
func (t Table) Classify(rec *inventory.CanonicalRecord) (string, bool) {
	for _, r := range t.rules {
		if value, ok := r.match(rec); ok {
			return value, true
		}
	}
	return t.def, t.def != ""
}

// Apply classifies rec into the table's column. Columns that already hold a
// value are kept unless the table overwrites.
func (t Table) Apply(rec *inventory.CanonicalRecord) bool {
	if !t.overwrite && !rec.IsBlank(t.Column) {
		return false
	}
	value, ok := t.Classify(rec)
	if !ok {
		return false
	}
	return rec.Set(t.Column, value) == nil
}
