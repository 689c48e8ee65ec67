package normalize

import (
	"fmt"
	"sort"
	"strings"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/textutil"

	"github.com/shopspring/decimal"
)

// Func converts one extracted value into the representation
// inventory.CanonicalRecord.Set takes. Absence is (nil, nil).
type Func func(value any) (any, error)

func decimalFunc(parse func(string) (decimal.NullDecimal, error)) Func {
	return func(value any) (any, error) {
		text, ok := Text(value)
		if !ok {
			return nil, nil
		}
		d, err := parse(text)
		if err != nil || !d.Valid {
			return nil, err
		}
		return d.Decimal, nil
	}
}

func stringFunc(fn func(any) (string, bool)) Func {
	return func(value any) (any, error) {
		s, ok := fn(value)
		if !ok {
			return nil, nil
		}
		return s, nil
	}
}

var registry = map[string]Func{
	"text":       stringFunc(Text),
	"identifier": stringFunc(StringifyIdentifier),
	"shopify_id": stringFunc(ShopifyID),
	"html": func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return stringFunc(Text)(value)
		}
		if s = SanitizeHTML(s); s == "" {
			return nil, nil
		}
		return s, nil
	},
	"date": func(value any) (any, error) {
		s, ok := Text(value)
		if !ok {
			return nil, nil
		}
		return FormatDate(s)
	},
	"title": func(value any) (any, error) {
		s, ok := Text(value)
		if !ok {
			return nil, nil
		}
		return textutil.Title(s), nil
	},
	"lower": func(value any) (any, error) {
		s, ok := Text(value)
		if !ok {
			return nil, nil
		}
		return strings.ToLower(s), nil
	},
	"upper": func(value any) (any, error) {
		s, ok := Text(value)
		if !ok {
			return nil, nil
		}
		return strings.ToUpper(s), nil
	},
	"measurement": decimalFunc(ParseMeasurement),
	"length":      decimalFunc(ParseLength),
	"cm": decimalFunc(func(s string) (decimal.NullDecimal, error) {
		d, err := ParseMeasurement(s)
		if err != nil || !d.Valid {
			return d, err
		}
		d.Decimal = CmToInches(d.Decimal)
		return d, nil
	}),
	"money": func(value any) (any, error) {
		d, err := ParseMoney(value)
		if err != nil || !d.Valid {
			return nil, err
		}
		return d.Decimal, nil
	},
	"cents": func(value any) (any, error) {
		d, err := ParseCents(value)
		if err != nil || !d.Valid {
			return nil, err
		}
		return d.Decimal, nil
	},
	"bool": func(value any) (any, error) {
		b, ok, err := ParseBool(value)
		if err != nil || !ok {
			return nil, err
		}
		return b, nil
	},
	"quantity": func(value any) (any, error) {
		q, ok, err := ParseQuantity(value)
		if !ok {
			return nil, err
		}
		// clamped values are still returned alongside the error
		return q, err
	},
	"tags": func(value any) (any, error) {
		tags := SplitTags(value)
		if len(tags) == 0 {
			return nil, nil
		}
		return tags, nil
	},
}

// Lookup resolves a normalizer by the name brand configs use.
func Lookup(name string) (Func, error) {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown normalizer %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return fn, nil
}

// Names lists the registered normalizers.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ForKind is the normalizer used when a field names none.
func ForKind(kind inventory.Kind) Func {
	switch kind {
	case inventory.KindIdentifier:
		return registry["identifier"]
	case inventory.KindHTML:
		return registry["html"]
	case inventory.KindDate:
		return registry["date"]
	case inventory.KindMeasurement:
		return registry["length"]
	case inventory.KindMoney:
		return registry["money"]
	case inventory.KindDecimal:
		return registry["money"]
	case inventory.KindBool:
		return registry["bool"]
	case inventory.KindQuantity:
		return registry["quantity"]
	case inventory.KindTags:
		return registry["tags"]
	}
	return registry["text"]
}
