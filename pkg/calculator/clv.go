package calculator

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"offer-clv/pkg/loader"
	"offer-clv/pkg/models"

	"go.uber.org/zap"
)

// RepeaterBonus is the flat value added to an event whose customer repeated.
const RepeaterBonus = 50.0

type costStatus int

const (
	costPriced costStatus = iota
	costMissing
	costInvalid
)

// Run loads both sources and aggregates the history.
func Run(ctx context.Context, catalog, history loader.Source, logger *zap.Logger) (models.AggregateResult, error) {
	ds, err := loader.Load(ctx, catalog, history)
	if err != nil {
		return models.AggregateResult{}, fmt.Errorf("load: %w", err)
	}
	logger.Debug("dataset loaded",
		zap.String("catalog", catalog.Name()),
		zap.String("history", history.Name()),
		zap.Int("catalog_rows", len(ds.Catalog)),
		zap.Int("history_rows", len(ds.History)),
	)

	res := Aggregate(ds.Catalog, ds.History)
	if res.MissingOffers > 0 || res.InvalidValues > 0 {
		logger.Warn("events priced at zero cost",
			zap.Int("missing_offers", res.MissingOffers),
			zap.Int("invalid_values", res.InvalidValues),
			zap.Strings("unmatched_offer_ids", res.UnmatchedOffers),
		)
	}
	logger.Info("metrics computed",
		zap.Int("total", res.Summary.Total),
		zap.Float64("control_clv", res.Summary.ControlCLV),
		zap.Float64("experimental_clv", res.Summary.ExperimentalCLV),
		zap.Int("control_repeaters", res.Summary.ControlRepeaters),
		zap.Int("experimental_repeaters", res.Summary.ExperimentalRepeaters),
	)
	return res, nil
}

// Aggregate folds the history into the dashboard metrics. It is pure: the
// same inputs always give the same result.
//
// Each event costs its catalog offervalue and earns RepeaterBonus when
// is_repeater is "1". The net value goes to the control bucket when
// in_controlgroup is "1", otherwise to the experimental bucket. When several
// catalog rows share an offer_id the first one wins. An unknown offer_id or a
// value that is not a finite number costs 0 and is counted in MissingOffers or
// InvalidValues.
func Aggregate(catalog []models.OfferCatalogEntry, history []models.OfferEvent) models.AggregateResult {
	index := indexCatalog(catalog)

	res := models.AggregateResult{UnmatchedOffers: []string{}}
	unmatched := map[string]bool{}

	for _, ev := range history {
		res.Summary.Total++

		cost, status := offerCost(index, ev.OfferID)
		switch status {
		case costPriced:
			res.EventsPriced++
		case costMissing:
			res.MissingOffers++
			if !unmatched[ev.OfferID] {
				unmatched[ev.OfferID] = true
				res.UnmatchedOffers = append(res.UnmatchedOffers, ev.OfferID)
			}
		case costInvalid:
			res.InvalidValues++
		}

		repeater := ev.IsRepeater == "1"
		control := ev.InControlGroup == "1"

		value := -cost
		if repeater {
			value += RepeaterBonus
		}

		if control {
			res.Summary.ControlCLV += value
		} else {
			res.Summary.ExperimentalCLV += value
		}

		if repeater {
			if control {
				res.Summary.ControlRepeaters++
			} else {
				res.Summary.ExperimentalRepeaters++
			}
		}
	}
	return res
}

// indexCatalog keeps the first entry seen for each offer_id.
func indexCatalog(catalog []models.OfferCatalogEntry) map[string]models.OfferCatalogEntry {
	index := make(map[string]models.OfferCatalogEntry, len(catalog))
	for _, e := range catalog {
		if _, ok := index[e.OfferID]; !ok {
			index[e.OfferID] = e
		}
	}
	return index
}

func offerCost(index map[string]models.OfferCatalogEntry, offerID string) (float64, costStatus) {
	entry, ok := index[offerID]
	if !ok {
		return 0, costMissing
	}
	v, err := strconv.ParseFloat(entry.OfferValue, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, costInvalid
	}
	return v, costPriced
}
