package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/htmlutil"
	"inventory-scrapers/lib/textutil"

	"github.com/shopspring/decimal"
)

// Text renders scalar values as collapsed text, lists are joined with
// ", ". Maps have no text form.
func Text(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := textutil.CollapseSpace(v)
		return s, s != ""
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case decimal.Decimal:
		return v.String(), true
	case []string:
		return joinText(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := Text(item); ok {
				parts = append(parts, s)
			}
		}
		return joinText(parts)
	}
	return "", false
}

func joinText(parts []string) (string, bool) {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = textutil.CollapseSpace(p); p != "" {
			out = append(out, p)
		}
	}
	s := strings.Join(out, ", ")
	return s, s != ""
}

// StringifyIdentifier returns the exact text of a numeric or string
// identifier. json.Number values are used digit for digit and never pass
// through a float.
func StringifyIdentifier(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case json.Number:
		s := v.String()
		if strings.ContainsAny(s, ".eE") {
			d, err := decimal.NewFromString(s)
			if err == nil && d.IsInteger() {
				return d.String(), true
			}
		}
		return s, s != ""
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// ShopifyID strips the "gid://shopify/ProductVariant/" prefix of global ids.
func ShopifyID(value any) (string, bool) {
	s, ok := StringifyIdentifier(value)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(s, "gid://") {
		s = s[strings.LastIndex(s, "/")+1:]
		if i := strings.Index(s, "?"); i >= 0 {
			s = s[:i]
		}
	}
	return s, s != ""
}

// SanitizeHTML strips markup and folds whitespace into single spaces.
func SanitizeHTML(raw string) string {
	return htmlutil.SanitizeHTML(raw)
}

// DateLayout is the rendered form of dates, MM/DD/YYYY.
const DateLayout = "01/02/2006"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders an ISO-8601 timestamp as MM/DD/YYYY in the
// timestamp's own offset.
func FormatDate(iso string) (string, error) {
	iso = strings.TrimSpace(iso)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, iso)
		if err == nil {
			return t.Format(DateLayout), nil
		}
		lastErr = err
	}
	return "", &inventory.DateParseError{Input: iso, Err: lastErr}
}

var moneyRegex = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseMoney reads the first number in value ("$1,098.00" -> 1098.00).
func ParseMoney(value any) (decimal.NullDecimal, error) {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(d.Round(2)), nil
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(2)), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	}
	text, ok := Text(value)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	match := moneyRegex.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d.Round(2)), nil
}

// ParseCents reads an integer amount of cents (9800 -> 98.00).
func ParseCents(value any) (decimal.NullDecimal, error) {
	d, err := ParseMoney(value)
	if err != nil || !d.Valid {
		return d, err
	}
	return decimal.NewNullDecimal(d.Decimal.Shift(-2).Round(2)), nil
}

var (
	trueWords  = []string{"true", "yes", "y", "1", "instock", "in stock", "available"}
	falseWords = []string{"false", "no", "n", "0", "outofstock", "out of stock", "sold out", "unavailable"}
)

// ParseBool accepts booleans, 0/1 and the stock words storefronts use.
func ParseBool(value any) (bool, bool, error) {
	if b, isBool := value.(bool); isBool {
		return b, true, nil
	}
	text, present := Text(value)
	if !present {
		return false, false, nil
	}
	text = strings.ToLower(text)
	for _, w := range trueWords {
		if text == w {
			return true, true, nil
		}
	}
	for _, w := range falseWords {
		if text == w {
			return false, true, nil
		}
	}
	return false, false, fmt.Errorf("not a boolean: %q", text)
}

// ClampedError reports a value that was out of range and replaced by
// Value. Callers use Value and log the error.
type ClampedError struct {
	Input string
	Value any
}

func (e *ClampedError) Error() string {
	return fmt.Sprintf("value %s out of range, using %v", e.Input, e.Value)
}

// ParseQuantity reads a whole stock count. Negative counts (oversold
// inventory) become 0 with a ClampedError.
func ParseQuantity(value any) (int64, bool, error) {
	d, err := ParseMoney(value)
	if err != nil {
		return 0, false, err
	}
	if !d.Valid {
		return 0, false, nil
	}
	if !d.Decimal.IsInteger() {
		return 0, false, fmt.Errorf("not a whole quantity: %s", d.Decimal)
	}
	q := d.Decimal.IntPart()
	if q < 0 {
		return 0, true, &ClampedError{Input: d.Decimal.String(), Value: int64(0)}
	}
	return q, true, nil
}

// SplitTags accepts a list or a comma separated string.
func SplitTags(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := Text(item); ok {
				raw = append(raw, s)
			}
		}
	}
	var out []string
	for _, t := range raw {
		if t = textutil.CollapseSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsClamped reports whether err only signals a clamped value.
func IsClamped(err error) (any, bool) {
	var clamped *ClampedError
	if errors.As(err, &clamped) {
		return clamped.Value, true
	}
	return nil, false
}
