// Package graphql reads Shopify Storefront/Admin GraphQL product
// connections with cursor pagination.
package graphql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-scrapers/internal/extract"
	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/normalize"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/sources/graphql")

const (
	DefaultTokenHeader = "X-Shopify-Storefront-Access-Token"
	defaultPath        = "/api/2024-04/graphql.json"
	defaultConnection  = "data.products"
	defaultPageSize    = 100
)

// DefaultQuery lists storefront products with their variants. Brands with
// other schemas supply their own query using the same variables.
const DefaultQuery = `query Products($cursor: String, $pageSize: Int!, $query: String) {
  products(first: $pageSize, after: $cursor, query: $query) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        handle
        title
        vendor
        productType
        tags
        descriptionHtml
        publishedAt
        createdAt
        onlineStoreUrl
        featuredImage { url }
        variants(first: 100) {
          edges {
            node {
              id
              sku
              barcode
              title
              availableForSale
              quantityAvailable
              price { amount }
              compareAtPrice { amount }
              selectedOptions { name value }
              image { url }
            }
          }
        }
      }
    }
  }
}`

type GraphQL struct {
	cfg        inventory.SourceConfig
	controller *fetch.Controller
	api        telemetry.API
}

func New(cfg inventory.SourceConfig, deps sources.Deps) (*GraphQL, error) {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.Connection == "" {
		cfg.Connection = defaultConnection
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &GraphQL{
		cfg:        cfg,
		controller: deps.Controller(cfg),
		api:        telemetry.NewScopedAPI(cfg.Name, deps.API),
	}, nil
}

func (g *GraphQL) Name() string {
	return g.cfg.Name
}

type gqlError struct {
	Message string
	Code    string
}

func responseErrors(doc any) []gqlError {
	list, _ := extract.Get(doc, "errors")
	items, _ := list.([]any)
	out := make([]gqlError, 0, len(items))
	for _, item := range items {
		var e gqlError
		e.Message, _ = normalize.Text(mapGet(item, "message"))
		e.Code, _ = normalize.Text(mapGet(item, "extensions", "code"))
		out = append(out, e)
	}
	return out
}

func mapGet(v any, path ...string) any {
	value, _ := extract.Get(v, strings.Join(path, "."))
	return value
}

func isThrottled(e gqlError) bool {
	return strings.EqualFold(e.Code, "THROTTLED") ||
		strings.Contains(strings.ToLower(e.Message), "throttled")
}

// checkErrors turns top-level errors into a transient error when every
// error is throttling and a fatal one otherwise.
func (g *GraphQL) checkErrors(url string, doc any) error {
	errs := responseErrors(doc)
	if len(errs) == 0 {
		return nil
	}
	throttled := true
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Message
		if e.Code != "" {
			messages[i] = fmt.Sprintf("%s (%s)", e.Message, e.Code)
		}
		throttled = throttled && isThrottled(e)
	}
	err := errors.New(strings.Join(messages, "; "))
	if throttled {
		return &inventory.TransientFetchError{URL: url, Err: err}
	}
	return &inventory.FatalFetchError{Source: g.cfg.Name, URL: url, Err: err}
}

func (g *GraphQL) fetchPage(ctx context.Context, cursor string) (any, error) {
	ctx, span := tracer.Start(ctx, "graphql:page")
	defer span.End()
	span.SetAttributes(attribute.String("cursor", cursor))

	variables := map[string]any{
		"pageSize": g.cfg.PageSize,
		"cursor":   nil,
		"query":    nil,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}
	if g.cfg.QueryFilter != "" {
		variables["query"] = g.cfg.QueryFilter
	}

	var doc any
	_, err := g.controller.Do(ctx, fetch.Request{
		Method:  resty.MethodPost,
		Path:    g.cfg.Path,
		Headers: sources.Headers(g.cfg, DefaultTokenHeader),
		Body: map[string]any{
			"query":     g.cfg.Query,
			"variables": variables,
		},
		Check: func(res *resty.Response) error {
			decoded, err := sources.DecodeResponse(g.cfg.Name, res)
			if err != nil {
				return err
			}
			err = g.checkErrors(res.Request.URL, decoded)
			if err != nil {
				return err
			}
			doc = decoded
			return nil
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return nil, err
	}
	return doc, nil
}

// nodes reads a connection's nodes from either `edges[].node` or `nodes`.
func nodes(connection any) []map[string]any {
	var list []any
	if edges, ok := extract.Get(connection, "edges.*.node"); ok {
		list, _ = edges.([]any)
	} else if items, ok := extract.Get(connection, "nodes"); ok {
		list, _ = items.([]any)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Fetch follows pageInfo.endCursor while hasNextPage holds.
func (g *GraphQL) Fetch(ctx context.Context, emit inventory.EmitFunc) error {
	cursor := ""
	seenCursors := map[string]bool{}
	for page := 1; ; page++ {
		doc, err := g.fetchPage(ctx, cursor)
		if err != nil {
			return err
		}
		connection, ok := extract.Get(doc, g.cfg.Connection)
		if !ok {
			return &inventory.FatalFetchError{
				Source: g.cfg.Name,
				URL:    g.cfg.Path,
				Err:    fmt.Errorf("response has no %s connection", g.cfg.Connection),
			}
		}

		products := nodes(connection)
		for _, product := range products {
			err = emitProduct(g.cfg.Name, product, emit)
			if err != nil {
				return err
			}
		}
		g.api.ReportDebug("page", "page", page, "products", len(products))

		hasNext, _ := extract.Get(connection, "pageInfo.hasNextPage")
		next, _ := normalize.Text(mapGet(connection, "pageInfo", "endCursor"))
		switch {
		case hasNext != true || next == "":
			return nil
		case seenCursors[next]:
			g.api.ReportWarning("repeated-cursor", "cursor", next)
			return nil
		case g.cfg.MaxPages > 0 && page >= g.cfg.MaxPages:
			g.api.ReportWarning("max-pages", "pages", page)
			return nil
		}
		seenCursors[next] = true
		cursor = next
	}
}

func emitProduct(source string, product map[string]any, emit inventory.EmitFunc) error {
	variants := nodes(product["variants"])
	base := sources.Without(product, "variants")
	if len(variants) == 0 {
		return emit(inventory.RawRecord{Source: source, Fields: map[string]any{"product": base}})
	}
	for _, variant := range variants {
		options := map[string]any{}
		selected, _ := variant["selectedOptions"].([]any)
		for _, o := range selected {
			name, _ := normalize.Text(mapGet(o, "name"))
			value := mapGet(o, "value")
			if name != "" && !extract.IsEmpty(value) {
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
