package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Duration reads "1s" / "250ms" style strings.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(buff []byte) error {
	text, err := unquote(buff)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// BrandConfig parametrizes one brand's run. It is loaded once and never
// mutated while the run is in progress.
type BrandConfig struct {
	Brand string `json:"brand"`
	// Extends names another brand file (relative to this one) whose values
	// this file overrides.
	Extends  string `json:"extends"`
	Timezone string `json:"timezone"`

	// Primary names the source that defines the record universe.
	Primary string         `json:"primary"`
	Sources []SourceConfig `json:"sources"`

	UserAgent        string      `json:"user_agent"`
	Timeout          Duration    `json:"timeout"`
	CloudflareBypass bool        `json:"cloudflare_bypass"`
	Retry            RetryConfig `json:"retry"`

	// Fields maps a column name to its precedence-ordered extraction rules.
	Fields         map[string]FieldRule `json:"fields"`
	OptionFallback []OptionFallback     `json:"option_fallback"`
	Exclude        []Predicate          `json:"exclude"`
	Include        []Predicate          `json:"include"`
	Derived        []DerivedColumn      `json:"derived"`
	Classify       []ClassifyTable      `json:"classify"`
	Aggregates     []Aggregate          `json:"aggregates"`
	Required       []Column             `json:"required"`

	Output OutputConfig `json:"output"`
}

type SourceConfig struct {
	Name string `json:"name"`
	// Type is one of catalog, search, graphql, detail, history.
	Type string `json:"type"`

	// Hosts are base urls tried in order, "https://www.brand.com" then "https://brand.com".
	Hosts   []string          `json:"hosts"`
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`

	Token       string `json:"token"`
	TokenHeader string `json:"token_header"`

	Keys []KeySpec `json:"keys"`

	PageSize   int    `json:"page_size"`
	MaxPages   int    `json:"max_pages"`
	PageParam  string `json:"page_param"`
	PageStart  *int   `json:"page_start"`
	LimitParam string `json:"limit_param"`

	// search
	Params         map[string]string `json:"params"`
	Body           map[string]any    `json:"body"`
	ResultsPath    string            `json:"results_path"`
	TotalPagesPath string            `json:"total_pages_path"`
	CursorParam    string            `json:"cursor_param"`
	CursorPath     string            `json:"cursor_path"`
	Explode        string            `json:"explode"`

	// graphql
	Query       string `json:"query"`
	QueryFilter string `json:"query_filter"`
	Connection  string `json:"connection"`

	// detail
	DependsOn   string            `json:"depends_on"`
	KeyPath     string            `json:"key_path"`
	Format      string            `json:"format"`
	Selectors   map[string]string `json:"selectors"`
	Concurrency int               `json:"concurrency"`

	// Retry overrides the brand's retry policy for this source.
	Retry *RetryConfig `json:"retry"`
}

// KeySpec names one join key a source can produce. Paths are extracted and
// joined with "|", every path must resolve for the key to exist.
type KeySpec struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
	// Normalizer is applied to each part before joining, "identifier" when empty.
	Normalizer string `json:"normalizer"`
}

// Extraction reads one value out of a raw record.
type Extraction struct {
	Source string `json:"source"`
	// Path is dotted, with numeric list indexes, `*` wildcards and `|`
	// separated alternatives.
	Path string `json:"path"`
	// Option reads options.<name>, `|` separates aliases ("size|waist").
	Option string `json:"option"`
	// Regex is applied to the value's text, capture group 1 wins when present.
	Regex  string            `json:"regex"`
	Lookup map[string]string `json:"lookup"`
	Const  string            `json:"const"`
	Join   string            `json:"join"`
	// Normalizer overrides the field's normalizer for this source.
	Normalizer string `json:"normalizer"`
}

type FieldRule struct {
	From       []Extraction `json:"from"`
	Normalizer string       `json:"normalizer"`
}

// OptionFallback copies From into Column when Column is blank.
type OptionFallback struct {
	Column Column `json:"column"`
	From   Column `json:"from"`
}

// Predicate matches a merged record when every set criterion matches.
type Predicate struct {
	Handles        []string `json:"handles"`
	HandleContains []string `json:"handle_contains"`
	TagsAny        []string `json:"tags_any"`
	ProductTypes   []string `json:"product_types"`
	TitleContains  []string `json:"title_contains"`
	Blank          []Column `json:"blank"`
	// Field with Equals matches on any source's raw fields.
	Field  *Extraction `json:"field"`
	Equals []string    `json:"equals"`
}

// DerivedColumn renders Template with {Column} placeholders.
type DerivedColumn struct {
	Column    Column `json:"column"`
	Template  string `json:"template"`
	Overwrite bool   `json:"overwrite"`
}

// ClassifyTable is brand supplied lookup data, first matching rule wins.
type ClassifyTable struct {
	Column    Column         `json:"column"`
	Rules     []ClassifyRule `json:"rules"`
	Default   string         `json:"default"`
	Overwrite bool           `json:"overwrite"`
}

type ClassifyRule struct {
	TagsAny             []string            `json:"tags_any"`
	TagPrefix           string              `json:"tag_prefix"`
	TitleContains       []string            `json:"title_contains"`
	TitleExcludes       []string            `json:"title_excludes"`
	DescriptionContains []string            `json:"description_contains"`
	Equals              map[string][]string `json:"equals"`
	Range               *RangeCondition     `json:"range"`
	SizeSuffix          []string            `json:"size_suffix"`
	// Value is the classification, empty with TagPrefix takes the tag remainder.
	Value string `json:"value"`
}

// RangeCondition bounds a measurement column, inclusive, either side optional.
type RangeCondition struct {
	Column Column `json:"column"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

// Aggregate computes a style level value once and broadcasts it to every
// variant of the style. Func is sum, count or instock_percent.
type Aggregate struct {
	Column Column `json:"column"`
	Func   string `json:"func"`
	Of     Column `json:"of"`
}

type RetryConfig struct {
	MaxRetries        *int     `json:"max_retries"`
	BaseDelay         Duration `json:"base_delay"`
	MaxDelay          Duration `json:"max_delay"`
	FallbackThreshold *int     `json:"fallback_threshold"`
	RequestsPerSecond float64  `json:"requests_per_second"`
}

type OutputConfig struct {
	Columns []Column `json:"columns"`
	// Format is csv or xlsx.
	Format string `json:"format"`
	// Prefix replaces the brand in output file names.
	Prefix string `json:"prefix"`
}

// JoinAlias names the primary source's canonical key, any source can match
// on it.
const JoinAlias = "join"

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func intPtr(v int) *int {
	return &v
}

// Merged returns r with unset fields taken from base.
func (r RetryConfig) Merged(base RetryConfig) RetryConfig {
	if r.MaxRetries == nil {
		r.MaxRetries = base.MaxRetries
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = base.BaseDelay
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = base.MaxDelay
	}
	if r.FallbackThreshold == nil {
		r.FallbackThreshold = base.FallbackThreshold
	}
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = base.RequestsPerSecond
	}
	return r
}

// SetDefaults fills unset options with the values every brand shares.
func (c *BrandConfig) SetDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(30 * time.Second)
	}
	c.Retry = c.Retry.Merged(RetryConfig{
		MaxRetries:        intPtr(5),
		BaseDelay:         Duration(time.Second),
		MaxDelay:          Duration(8 * time.Second),
		FallbackThreshold: intPtr(2),
	})
	for i := range c.Sources {
		// history records carry the canonical key of the run that saw them
		if c.Sources[i].Type == "history" && len(c.Sources[i].Keys) == 0 {
			c.Sources[i].Keys = []KeySpec{{Name: JoinAlias, Paths: []string{"join_key"}}}
		}
	}
	if c.Primary == "" && len(c.Sources) == 1 {
		c.Primary = c.Sources[0].Name
	}
	if len(c.Output.Columns) == 0 {
		c.Output.Columns = AllColumns()
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
	if len(c.Aggregates) == 0 {
		for _, col := range c.Output.Columns {
			if col == QuantityOfStyle {
				c.Aggregates = append(c.Aggregates, Aggregate{
					Column: QuantityOfStyle,
					Func:   "sum",
					Of:     QuantityAvailable,
				})
				break
			}
		}
	}
}

// Source returns the named source config.
func (c *BrandConfig) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

var sourceTypes = map[string]bool{
	"catalog": true,
	"search":  true,
	"graphql": true,
	"detail":  true,
	"history": true,
}

// Check reports structural problems in the config, all of them at once.
func (c *BrandConfig) Check() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Brand) == "" {
		fail("brand is required")
	}
	if len(c.Sources) == 0 {
		fail("at least one source is required")
	}

	names := map[string]bool{}
	for i, s := range c.Sources {
		if s.Name == "" {
			fail("sources[%d]: name is required", i)
			continue
		}
		if names[s.Name] {
			fail("source %q: duplicate name", s.Name)
		}
		names[s.Name] = true
		if !sourceTypes[s.Type] {
			fail("source %q: unknown type %q", s.Name, s.Type)
		}
		if s.Type != "history" && len(s.Hosts) == 0 {
			fail("source %q: at least one host is required", s.Name)
		}
		if len(s.Keys) == 0 {
			fail("source %q: at least one join key is required", s.Name)
		}
		for _, k := range s.Keys {
			if k.Name == "" || len(k.Paths) == 0 {
				fail("source %q: join keys need a name and paths", s.Name)
			}
		}
		if s.Type == "detail" && s.KeyPath == "" {
			fail("source %q: detail sources need key_path", s.Name)
		}
	}
	for _, s := range c.Sources {
		if s.Type == "detail" && s.DependsOn == "" {
			fail("source %q: detail sources need depends_on", s.Name)
		}
		if s.DependsOn != "" && (!names[s.DependsOn] || s.DependsOn == s.Name) {
			fail("source %q: depends on unknown source %q", s.Name, s.DependsOn)
		}
	}
	for _, s := range c.Sources {
		hops := 0
		for next := s.DependsOn; next != "" && hops <= len(c.Sources); hops++ {
			dep, ok := c.Source(next)
			if !ok {
				break
			}
			next = dep.DependsOn
		}
		if hops > len(c.Sources) {
			fail("source %q: depends_on forms a cycle", s.Name)
		}
	}

	primary, ok := c.Source(c.Primary)
	switch {
	case c.Primary == "":
		fail("primary source is required")
	case !ok:
		fail("primary source %q is not configured", c.Primary)
	case primary.DependsOn != "":
		fail("primary source %q cannot depend on another source", c.Primary)
	}

	for name, rule := range c.Fields {
		if _, err := ParseColumn(name); err != nil {
			fail("fields: %w", err)
		}
		if len(rule.From) == 0 {
			fail("fields.%s: no extraction rules", name)
		}
		for _, e := range rule.From {
			if e.Source != "" && !names[e.Source] {
				fail("fields.%s: unknown source %q", name, e.Source)
			}
			if e.Source == "" && e.Const == "" {
				fail("fields.%s: extraction needs a source", name)
			}
		}
	}
	for _, p := range append(append([]Predicate{}, c.Exclude...), c.Include...) {
		if p.Field != nil && !names[p.Field.Source] {
			fail("predicate field: unknown source %q", p.Field.Source)
		}
	}
	for _, d := range c.Derived {
		if d.Template == "" {
			fail("derived %s: template is required", d.Column)
		}
	}
	for _, a := range c.Aggregates {
		switch a.Func {
		case "sum", "count", "instock_percent":
		default:
			fail("aggregate %s: unknown func %q", a.Column, a.Func)
		}
	}
	switch c.Output.Format {
	case "", "csv", "xlsx":
	default:
		fail("output: unknown format %q", c.Output.Format)
	}

	return errors.Join(errs...)
}
