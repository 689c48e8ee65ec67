package reconcile

import (
	"strings"

	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/lib/textutil"
)

type predicate struct {
	inventory.Predicate
	field *extract.Extractor
}

func compilePredicate(p inventory.Predicate) (predicate, error) {
	out := predicate{Predicate: p}
	if p.Field != nil {
		x, err := extract.Compile(*p.Field)
		if err != nil {
			return predicate{}, err
		}
		out.field = &x
	}
	return out, nil
}

func equalFoldAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

func containsAny(value string, needles []string) bool {
	for _, n := range needles {
		if n != "" && textutil.ContainsFold(value, n) {
			return true
		}
	}
	return false
}

// match reports whether every criterion set on p holds for the merged
// record. A predicate without criteria matches nothing.
func (p predicate) match(rec *inventory.CanonicalRecord, raw map[string]*inventory.RawRecord) bool {
	matched := false
	if len(p.Handles) > 0 {
		if !equalFoldAny(rec.Handle, p.Handles) {
			return false
		}
		matched = true
	}
	if len(p.HandleContains) > 0 {
		if !containsAny(rec.Handle, p.HandleContains) {
			return false
		}
		matched = true
	}
	if len(p.TagsAny) > 0 {
		found := false
		for _, tag := range rec.Tags {
			if equalFoldAny(tag, p.TagsAny) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
		matched = true
	}
	if len(p.ProductTypes) > 0 {
		if !equalFoldAny(rec.ProductType, p.ProductTypes) {
			return false
		}
		matched = true
	}
	if len(p.TitleContains) > 0 {
		if !containsAny(rec.Product, p.TitleContains) {
			return false
		}
		matched = true
	}
	if len(p.Blank) > 0 {
		for _, c := range p.Blank {
			if !rec.IsBlank(c) {
				return false
			}
		}
		matched = true
	}
	if p.field != nil {
		src := raw[p.field.Source]
		if src == nil {
			return false
		}
		value, ok := p.field.Extract(src.Fields)
		if !ok {
			return false
		}
		if len(p.Equals) > 0 {
			text, _ := normalize.Text(value)
			if !equalFoldAny(text, p.Equals) {
				return false
			}
		}
		matched = true
	}
	return matched
}
