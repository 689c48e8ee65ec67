package extract

import (
	"fmt"
	"regexp"
	"strings"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
)

// Extractor is a compiled inventory.Extraction.
type Extractor struct {
	Source     string
	Normalizer string

	path     string
	options  []string
	regex    *regexp.Regexp
	lookup   map[string]string
	constant string
	join     string
}

func Compile(e inventory.Extraction) (Extractor, error) {
	x := Extractor{
		Source:     e.Source,
		Normalizer: e.Normalizer,
		path:       e.Path,
		constant:   e.Const,
		join:       e.Join,
	}
	if e.Option != "" {
		for _, name := range strings.Split(e.Option, "|") {
			if key := OptionKey(name); key != "" {
				x.options = append(x.options, key)
			}
		}
	}
	if e.Regex != "" {
		re, err := regexp.Compile("(?i)" + e.Regex)
		if err != nil {
			return Extractor{}, fmt.Errorf("regex %q: %w", e.Regex, err)
		}
		x.regex = re
	}
	if len(e.Lookup) > 0 {
		x.lookup = make(map[string]string, len(e.Lookup))
		for k, v := range e.Lookup {
			x.lookup[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	if e.Normalizer != "" {
		if _, err := normalize.Lookup(e.Normalizer); err != nil {
			return Extractor{}, err
		}
	}
	if x.constant == "" && x.path == "" && len(x.options) == 0 {
		return Extractor{}, fmt.Errorf("extraction from %q needs a path, option or const", e.Source)
	}
	return x, nil
}

// Extract reads the value out of fields. A missing value is (nil, false),
// never an error.
func (x Extractor) Extract(fields map[string]any) (any, bool) {
	if x.constant != "" {
		return x.constant, true
	}

	var value any
	var ok bool
	if x.path != "" {
		value, ok = Get(fields, x.path)
	}
	for _, name := range x.options {
		if ok {
			break
		}
		value, ok = Get(fields, "options."+name)
	}
	if !ok {
		return nil, false
	}

	if x.join != "" {
		if list, isList := value.([]any); isList {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				if s, present := normalize.Text(item); present {
					parts = append(parts, s)
				}
			}
			value = strings.Join(parts, x.join)
		}
	}

	if x.regex != nil {
		text, present := normalize.Text(value)
		if !present {
			return nil, false
		}
		match := x.regex.FindStringSubmatch(text)
		if match == nil {
			return nil, false
		}
		value = match[0]
		if len(match) > 1 {
			value = match[1]
		}
	}

	if x.lookup != nil {
		text, _ := normalize.Text(value)
		mapped, found := x.lookup[strings.ToLower(text)]
		if !found {
			mapped, found = x.lookup["*"]
		}
		if !found {
			return nil, false
		}
		value = mapped
	}

	if IsEmpty(value) {
		return nil, false
	}
	return value, true
}
