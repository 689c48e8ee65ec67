// Package catalog reads Shopify style `products.json` feeds with numbered
// page pagination.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/sources/catalog")

const (
	defaultPath     = "/products.json"
	defaultPageSize = 250
	defaultResults  = "products"
)

type Catalog struct {
	cfg        inventory.SourceConfig
	controller *fetch.Controller
	api        telemetry.API
}

func New(cfg inventory.SourceConfig, deps sources.Deps) (*Catalog, error) {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.LimitParam == "" {
		cfg.LimitParam = "limit"
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = defaultResults
	}
	return &Catalog{
		cfg:        cfg,
		controller: deps.Controller(cfg),
		api:        telemetry.NewScopedAPI(cfg.Name, deps.API),
	}, nil
}

func (c *Catalog) Name() string {
	return c.cfg.Name
}

// Fetch walks pages until one comes back empty, short, without unseen
// products or max_pages is reached.
func (c *Catalog) Fetch(ctx context.Context, emit inventory.EmitFunc) error {
	seen := map[string]bool{}
	page := sources.PageStart(c.cfg)
	for fetched := 1; ; fetched++ {
		products, err := c.fetchPage(ctx, page)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			c.api.ReportDebug("done", "page", page, "reason", "empty page")
			return nil
		}

		unseen := 0
		for _, item := range products {
			product, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, _ := normalize.StringifyIdentifier(product["id"])
			if id == "" {
				id, _ = normalize.Text(product["handle"])
			}
			if id != "" {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			unseen++
			err = emitProduct(c.cfg.Name, product, emit)
			if err != nil {
				return err
			}
		}
		c.api.ReportDebug("page", "page", page, "products", len(products), "new", unseen)

		switch {
		case unseen == 0:
			c.api.ReportDebug("done", "page", page, "reason", "no new products")
			return nil
		case len(products) < c.cfg.PageSize:
			return nil
		case c.cfg.MaxPages > 0 && fetched >= c.cfg.MaxPages:
			c.api.ReportWarning("max-pages", "pages", fetched)
			return nil
		}
		page++
	}
}

func (c *Catalog) fetchPage(ctx context.Context, page int) ([]any, error) {
	ctx, span := tracer.Start(ctx, "catalog:page")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	query := sources.Query(c.cfg.Params)
	query.Set(c.cfg.PageParam, strconv.Itoa(page))
	query.Set(c.cfg.LimitParam, strconv.Itoa(c.cfg.PageSize))

	res, err := c.controller.Do(ctx, fetch.Request{
		Path:    c.cfg.Path,
		Query:   query,
		Headers: sources.Headers(c.cfg, ""),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return nil, err
	}
	doc, err := sources.DecodeResponse(c.cfg.Name, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode page")
		return nil, err
	}
	value, ok := extract.Get(doc, c.cfg.ResultsPath)
	if !ok {
		return nil, nil
	}
	products, ok := value.([]any)
	if !ok {
		return nil, &inventory.FatalFetchError{
			Source: c.cfg.Name,
			URL:    res.Request.URL,
			Err:    fmt.Errorf("%s is not a list", c.cfg.ResultsPath),
		}
	}
	return products, nil
}

// optionNames pairs product.options with variant.option1..3.
func optionNames(product map[string]any) []string {
	list, _ := product["options"].([]any)
	names := make([]string, len(list))
	for i, o := range list {
		switch v := o.(type) {
		case map[string]any:
			names[i], _ = normalize.Text(v["name"])
		case string:
			names[i] = v
		}
	}
	return names
}

func emitProduct(source string, product map[string]any, emit inventory.EmitFunc) error {
	variants, _ := product["variants"].([]any)
	base := sources.Without(product, "variants")
	if len(variants) == 0 {
		return emit(inventory.RawRecord{
			Source: source,
			Fields: map[string]any{"product": base},
		})
	}

	names := optionNames(product)
	for _, v := range variants {
		variant, ok := v.(map[string]any)
		if !ok {
			continue
		}
		options := map[string]any{}
		for i, name := range names {
			if name == "" {
				continue
			}
			value, ok := variant[fmt.Sprintf("option%d", i+1)]
			if ok && !extract.IsEmpty(value) {
				options[extract.OptionKey(name)] = value
			}
		}
		err := emit(inventory.RawRecord{
			Source: source,
			Fields: map[string]any{
				"product": base,
				"variant": variant,
				"options": options,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
