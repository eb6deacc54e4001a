package loader

import (
	"context"
	"fmt"

	"offer-clv/pkg/models"

	"golang.org/x/sync/errgroup"
)

var (
	catalogColumns = []string{"offer_id", "offervalue"}
	historyColumns = []string{"offer_id", "in_controlgroup", "is_repeater"}
)

// Load fetches the catalog and the history concurrently and returns both once
// both have completed. The first failure cancels the other fetch; no partial
// dataset is returned.
func Load(ctx context.Context, catalog, history Source) (models.Dataset, error) {
	var catalogTable, historyTable Table

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := fetchWithColumns(gctx, catalog, catalogColumns)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		catalogTable = t
		return nil
	})
	g.Go(func() error {
		t, err := fetchWithColumns(gctx, history, historyColumns)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		historyTable = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Dataset{}, err
	}

	return models.Dataset{
		Catalog: decodeCatalog(catalogTable),
		History: decodeHistory(historyTable),
	}, nil
}

func fetchWithColumns(ctx context.Context, src Source, required []string) (Table, error) {
	t, err := src.Fetch(ctx)
	if err != nil {
		return Table{}, err
	}
	for _, c := range required {
		if !t.HasColumn(c) {
			return Table{}, fmt.Errorf("%s: %w: missing column %q", src.Name(), ErrMalformedTable, c)
		}
	}
	return t, nil
}

func decodeCatalog(t Table) []models.OfferCatalogEntry {
	out := make([]models.OfferCatalogEntry, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.OfferCatalogEntry{
			OfferID:    row["offer_id"],
			OfferValue: row["offervalue"],
		})
	}
	return out
}

func decodeHistory(t Table) []models.OfferEvent {
	out := make([]models.OfferEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		ev := models.OfferEvent{
			OfferID:        row["offer_id"],
			InControlGroup: row["in_controlgroup"],
			IsRepeater:     row["is_repeater"],
		}
		for k, v := range row {
			switch k {
			case "offer_id", "in_controlgroup", "is_repeater":
			default:
				if ev.Extra == nil {
					ev.Extra = make(map[string]string)
				}
				ev.Extra[k] = v
			}
		}
		out = append(out, ev)
	}
	return out
}
