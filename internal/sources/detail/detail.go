// Package detail fetches one product page (or json document) per key
// produced by another source.
package detail

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"
	"inventory-scrapers/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("internal/sources/detail")

const defaultConcurrency = 4

type Detail struct {
	cfg        inventory.SourceConfig
	controller *fetch.Controller
	api        telemetry.API
}

func New(cfg inventory.SourceConfig, deps sources.Deps) (*Detail, error) {
	if cfg.DependsOn == "" || cfg.KeyPath == "" {
		return nil, fmt.Errorf("detail source %q: depends_on and key_path are required", cfg.Name)
	}
	if !strings.Contains(cfg.Path, "{key}") {
		return nil, fmt.Errorf("detail source %q: path must contain {key}", cfg.Name)
	}
	if cfg.Format == "" {
		cfg.Format = "html"
	}
	if cfg.Format != "html" && cfg.Format != "json" {
		return nil, fmt.Errorf("detail source %q: unknown format %q", cfg.Name, cfg.Format)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Detail{
		cfg:        cfg,
		controller: deps.Controller(cfg),
		api:        telemetry.NewScopedAPI(cfg.Name, deps.API),
	}, nil
}

func (d *Detail) Name() string {
	return d.cfg.Name
}

func (d *Detail) DependsOn() string {
	return d.cfg.DependsOn
}

// Keys reads key_path from upstream records, deduplicated in first seen
// order.
func (d *Detail) Keys(upstream []inventory.RawRecord) []string {
	seen := map[string]bool{}
	var keys []string
	for _, r := range upstream {
		value, ok := extract.Get(r.Fields, d.cfg.KeyPath)
		if !ok {
			continue
		}
		key, ok := normalize.StringifyIdentifier(value)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// FetchFor fetches every key with a bounded worker pool. An item that fails
// is dropped with a warning, records are emitted in key order.
func (d *Detail) FetchFor(ctx context.Context, upstream []inventory.RawRecord, emit inventory.EmitFunc) error {
	keys := d.Keys(upstream)
	results := make([]map[string]any, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.Concurrency)
	for i, key := range keys {
		group.Go(func() error {
			fields, err := d.fetchOne(groupCtx, key)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				d.api.ReportWarning("item-dropped", "key", key, "err", err)
				return nil
			}
			results[i] = fields
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return err
	}

	dropped := 0
	for _, fields := range results {
		if fields == nil {
			dropped++
			continue
		}
		err = emit(inventory.RawRecord{Source: d.cfg.Name, Fields: fields})
		if err != nil {
			return err
		}
	}
	d.api.ReportDebug("done", "keys", len(keys), "dropped", dropped)
	return nil
}

func (d *Detail) fetchOne(ctx context.Context, key string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "detail:item")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	escaped := url.PathEscape(key)
	query := sources.Query(nil)
	for k, v := range d.cfg.Params {
		query.Set(k, strings.ReplaceAll(v, "{key}", key))
	}
	res, err := d.controller.Do(ctx, fetch.Request{
		Path:    strings.ReplaceAll(d.cfg.Path, "{key}", escaped),
		Query:   query,
		Headers: sources.Headers(d.cfg, ""),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch item")
		return nil, err
	}

	if d.cfg.Format == "json" {
		doc, err := sources.DecodeResponse(d.cfg.Name, res)
		if err != nil {
			return nil, err
		}
		return map[string]any{"key": key, "item": doc}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, &inventory.FatalFetchError{Source: d.cfg.Name, URL: res.Request.URL, Err: err}
	}
	return pageFields(key, doc, d.cfg.Selectors), nil
}

// pageFields extracts the page title, its full sanitized text, embedded
// ld+json documents and each configured selector. Selectors are "css" for
// text or "css@attr" for an attribute.
func pageFields(key string, doc *goquery.Document, selectors map[string]string) map[string]any {
	fields := map[string]any{
		"key":   key,
		"title": htmlutil.SelectionText(doc.Find("title")),
		"text":  htmlutil.SelectionText(doc.Find("body")),
	}

	var ld []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		value, err := sources.DecodeJSON([]byte(s.Text()))
		if err == nil {
			ld = append(ld, value)
		}
	})
	if len(ld) > 0 {
		fields["ld"] = ld
	}

	for name, selector := range selectors {
		css, attr, hasAttr := strings.Cut(selector, "@")
		sel := doc.Find(strings.TrimSpace(css)).First()
		if sel.Length() == 0 {
			continue
		}
		if hasAttr {
			if value, ok := sel.Attr(strings.TrimSpace(attr)); ok {
				fields[name] = value
			}
			continue
		}
		if text := htmlutil.SelectionText(sel); text != "" {
			fields[name] = text
		}
	}
	return fields
}
