package extract

import (
	"sort"
	"strconv"
	"strings"
)

// Get resolves a dotted path ("variant.sku", "images.0.src",
// "variants.*.id") against decoded JSON. `|` separates alternatives, the
// first one holding a non-empty value wins.
func Get(root any, path string) (any, bool) {
	for _, alt := range strings.Split(path, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		v, ok := get(root, strings.Split(alt, "."))
		if ok && !IsEmpty(v) {
			return v, true
		}
	}
	return nil, false
}

func get(node any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return node, node != nil
	}
	part, rest := parts[0], parts[1:]

	switch n := node.(type) {
	case map[string]any:
		if part == "*" {
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			items := make([]any, len(keys))
			for i, k := range keys {
				items[i] = n[k]
			}
			return collect(items, rest)
		}
		v, ok := n[part]
		if !ok {
			return nil, false
		}
		return get(v, rest)
	case []any:
		if part == "*" {
			return collect(n, rest)
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		if idx < 0 {
			idx += len(n)
		}
		if idx < 0 || idx >= len(n) {
			return nil, false
		}
		return get(n[idx], rest)
	}
	return nil, false
}

func collect(items []any, rest []string) (any, bool) {
	var out []any
	for _, item := range items {
		v, ok := get(item, rest)
		if !ok {
			continue
		}
		if list, isList := v.([]any); isList && len(rest) > 0 {
			out = append(out, list...)
			continue
		}
		out = append(out, v)
	}
	return out, len(out) > 0
}

// IsEmpty reports nil, blank strings and empty collections.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// OptionKey is the form option names are stored under in "options".
func OptionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
