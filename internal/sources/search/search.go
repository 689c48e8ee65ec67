// Package search reads search/merchandising services (Searchspring, Algolia
// style indexes) with page index or cursor pagination. Brand filter
// parameters are passed through untouched.
package search

import (
	"context"
	"fmt"

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

var tracer = otel.Tracer("internal/sources/search")

type Search struct {
	cfg        inventory.SourceConfig
	controller *fetch.Controller
	api        telemetry.API
}

func New(cfg inventory.SourceConfig, deps sources.Deps) (*Search, error) {
	if cfg.ResultsPath == "" {
		return nil, fmt.Errorf("search source %q: results_path is required", cfg.Name)
	}
	if cfg.Method == "" {
		cfg.Method = resty.MethodGet
		if cfg.Body != nil {
			cfg.Method = resty.MethodPost
		}
	}
	if cfg.CursorParam == "" && cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	return &Search{
		cfg:        cfg,
		controller: deps.Controller(cfg),
		api:        telemetry.NewScopedAPI(cfg.Name, deps.API),
	}, nil
}

func (s *Search) Name() string {
	return s.cfg.Name
}

func (s *Search) cursorMode() bool {
	return s.cfg.CursorParam != ""
}

func (s *Search) request(page int, cursor string) fetch.Request {
	req := fetch.Request{
		Method:  s.cfg.Method,
		Path:    s.cfg.Path,
		Headers: sources.Headers(s.cfg, ""),
	}

	paging := map[string]any{}
	if s.cursorMode() {
		if cursor != "" {
			paging[s.cfg.CursorParam] = cursor
		}
	} else {
		paging[s.cfg.PageParam] = page
	}
	if s.cfg.LimitParam != "" && s.cfg.PageSize > 0 {
		paging[s.cfg.LimitParam] = s.cfg.PageSize
	}

	query := sources.Query(s.cfg.Params)
	if s.cfg.Method == resty.MethodGet {
		for k, v := range paging {
			query.Set(k, fmt.Sprint(v))
		}
	} else {
		body := make(map[string]any, len(s.cfg.Body)+len(paging))
		for k, v := range s.cfg.Body {
			body[k] = v
		}
		for k, v := range paging {
			body[k] = v
		}
		req.Body = body
	}
	req.Query = query
	return req
}

func (s *Search) fetchPage(ctx context.Context, page int, cursor string) (any, error) {
	ctx, span := tracer.Start(ctx, "search:page")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page), attribute.String("cursor", cursor))

	res, err := s.controller.Do(ctx, s.request(page, cursor))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return nil, err
	}
	doc, err := sources.DecodeResponse(s.cfg.Name, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode page")
		return nil, err
	}
	return doc, nil
}

// Fetch emits one record per result, or per exploded child of a result
// with the result under "parent".
func (s *Search) Fetch(ctx context.Context, emit inventory.EmitFunc) error {
	page := sources.PageStart(s.cfg)
	cursor := ""
	seenCursors := map[string]bool{}

	for fetched := 1; ; fetched++ {
		doc, err := s.fetchPage(ctx, page, cursor)
		if err != nil {
			return err
		}
		value, _ := extract.Get(doc, s.cfg.ResultsPath)
		results, _ := value.([]any)
		if len(results) == 0 {
			return nil
		}
		for _, item := range results {
			err = s.emitResult(item, emit)
			if err != nil {
				return err
			}
		}
		s.api.ReportDebug("page", "page", page, "results", len(results))

		if s.cfg.MaxPages > 0 && fetched >= s.cfg.MaxPages {
			s.api.ReportWarning("max-pages", "pages", fetched)
			return nil
		}

		if s.cursorMode() {
			next, _ := normalize.Text(mapValue(doc, s.cfg.CursorPath))
			if next == "" || seenCursors[next] {
				return nil
			}
			seenCursors[next] = true
			cursor = next
			continue
		}

		if s.cfg.TotalPagesPath != "" {
			total, ok := sources.Int(mapValue(doc, s.cfg.TotalPagesPath))
			if ok && fetched >= total {
				return nil
			}
		} else if s.cfg.PageSize > 0 && len(results) < s.cfg.PageSize {
			return nil
		}
		page++
	}
}

func mapValue(doc any, path string) any {
	if path == "" {
		return nil
	}
	v, _ := extract.Get(doc, path)
	return v
}

func (s *Search) emitResult(item any, emit inventory.EmitFunc) error {
	if s.cfg.Explode == "" {
		return emit(inventory.RawRecord{Source: s.cfg.Name, Fields: map[string]any{"item": item}})
	}
	children, _ := mapValue(item, s.cfg.Explode).([]any)
	for _, child := range children {
		err := emit(inventory.RawRecord{
			Source: s.cfg.Name,
			Fields: map[string]any{"parent": item, "item": child},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
