// Package sources holds the contract shared by source adapters. Adapters
// live in subpackages, registry builds them by type.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/telemetry"

	"github.com/go-resty/resty/v2"
)

type Source interface {
	Name() string
}

// Lister fetches its whole record set independently. Pages are fetched in
// order and records are emitted in fetch order.
type Lister interface {
	Source
	Fetch(ctx context.Context, emit inventory.EmitFunc) error
}

// Dependent fetches one item per key found in another source's records.
type Dependent interface {
	Source
	DependsOn() string
	FetchFor(ctx context.Context, upstream []inventory.RawRecord, emit inventory.EmitFunc) error
}

// Deps is what a brand run hands every adapter it builds.
type Deps struct {
	Brand   string
	Session *resty.Client
	API     telemetry.API
	// Retry is the brand's policy, sources may override parts of it.
	Retry   inventory.RetryConfig
	History inventory.RunHistory
	// Sleep replaces the backoff sleeper when set.
	Sleep fetch.SleepFunc
}

// Controller builds the retry/fallback controller for one source.
func (d Deps) Controller(cfg inventory.SourceConfig) *fetch.Controller {
	retry := d.Retry
	if cfg.Retry != nil {
		retry = cfg.Retry.Merged(d.Retry)
	}
	c := fetch.NewController(cfg.Name, d.Session, cfg.Hosts, fetch.PolicyFrom(retry), d.API)
	if d.Sleep != nil {
		c.SetSleep(d.Sleep)
	}
	return c
}

// DecodeJSON decodes body keeping numbers as json.Number so identifiers
// never pass through a float.
func DecodeJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var out any
	err := decoder.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// DecodeResponse is DecodeJSON for a response, failures are fatal for the
// adapter since retrying would return the same document.
func DecodeResponse(source string, res *resty.Response) (any, error) {
	doc, err := DecodeJSON(res.Body())
	if err != nil {
		return nil, &inventory.FatalFetchError{
			Source: source,
			URL:    res.Request.URL,
			Status: res.StatusCode(),
			Err:    err,
		}
	}
	return doc, nil
}

// Query turns brand supplied params into url values, keeping them verbatim.
func Query(params map[string]string) url.Values {
	out := url.Values{}
	for k, v := range params {
		out.Set(k, v)
	}
	return out
}

// Headers merges the source's static headers with its access token.
func Headers(cfg inventory.SourceConfig, defaultTokenHeader string) map[string]string {
	out := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		out[k] = v
	}
	if cfg.Token != "" {
		header := cfg.TokenHeader
		if header == "" {
			header = defaultTokenHeader
		}
		if header != "" {
			out[header] = cfg.Token
		}
	}
	return out
}

// PageStart is the first page index, 1 unless configured.
func PageStart(cfg inventory.SourceConfig) int {
	if cfg.PageStart != nil {
		return *cfg.PageStart
	}
	return 1
}

// Int reads a decoded json number.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return i, true
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Without returns a shallow copy of m lacking key.
func Without(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
