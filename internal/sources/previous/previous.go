// Package previous replays the quantities recorded by the brand's last
// successful run, they feed the "Old Quantity Available" column.
package previous

import (
	"context"
	"fmt"
	"sort"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"
)

// JoinKeyField and QuantityField are the fields of emitted records.
const (
	JoinKeyField  = "join_key"
	QuantityField = "quantity"
)

type Previous struct {
	name    string
	brand   string
	history inventory.RunHistory
	api     telemetry.API
}

func New(cfg inventory.SourceConfig, deps sources.Deps) (*Previous, error) {
	return &Previous{
		name:    cfg.Name,
		brand:   deps.Brand,
		history: deps.History,
		api:     telemetry.NewScopedAPI(cfg.Name, deps.API),
	}, nil
}

func (p *Previous) Name() string {
	return p.name
}

// Fetch emits nothing when history is disabled or the brand never ran.
func (p *Previous) Fetch(ctx context.Context, emit inventory.EmitFunc) error {
	if p.history == nil {
		p.api.ReportDebug("disabled")
		return nil
	}
	quantities, err := p.history.LatestQuantities(ctx, p.brand)
	if err != nil {
		return &inventory.FatalFetchError{Source: p.name, URL: "history", Err: fmt.Errorf("latest quantities: %w", err)}
	}
	keys := make([]string, 0, len(quantities))
	for k := range quantities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		err = emit(inventory.RawRecord{
			Source: p.name,
			Fields: map[string]any{
				JoinKeyField:  k,
				QuantityField: quantities[k],
			},
		})
		if err != nil {
			return err
		}
	}
	p.api.ReportDebug("done", "records", len(keys))
	return nil
}
