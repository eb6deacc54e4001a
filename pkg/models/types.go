package models

import (
	"time"
)

/*
LOAD → plain types for the two loaded tables (offer catalog, history).
*/

// OfferCatalogEntry is one row of the offer catalog (offer_lookup).
// OfferValue stays string-encoded; it is coerced only when aggregated.
type OfferCatalogEntry struct {
	OfferID    string `json:"offer_id"`
	OfferValue string `json:"offervalue"`
}

// OfferEvent is one customer-offer event from the history table.
type OfferEvent struct {
	OfferID        string            `json:"offer_id"`
	InControlGroup string            `json:"in_controlgroup"` // "0" | "1"
	IsRepeater     string            `json:"is_repeater"`     // "0" | "1"
	Extra          map[string]string `json:"extra,omitempty"` // unused columns, kept as loaded
}

// Dataset is what the loader hands to the aggregator once both tables are in.
type Dataset struct {
	Catalog []OfferCatalogEntry
	History []OfferEvent
}

/*
COMPUTE → aggregated result
*/

// MetricSummary holds the five dashboard numbers.
type MetricSummary struct {
	Total                 int     `json:"total"`
	ControlCLV            float64 `json:"controlCLV"`
	ExperimentalCLV       float64 `json:"experimentalCLV"`
	ControlRepeaters      int     `json:"controlRepeaters"`
	ExperimentalRepeaters int     `json:"experimentalRepeaters"`
}

// AggregateResult is the summary plus counters describing how each event was priced.
type AggregateResult struct {
	Summary         MetricSummary `json:"summary"`
	EventsPriced    int           `json:"eventsPriced"`    // events with a usable catalog value
	MissingOffers   int           `json:"missingOffers"`   // events whose offer_id is not in the catalog
	InvalidValues   int           `json:"invalidValues"`   // events whose catalog value is not a finite number
	UnmatchedOffers []string      `json:"unmatchedOffers"` // distinct unknown offer ids, first-seen order
}

/*
CONFIG → run parameters
*/

// Config contains the run parameters shared by the summary and serve commands.
type Config struct {
	DataRoot    string        // root for web-style paths ("/data/...")
	Catalog     string        // offer catalog location
	History     string        // offer history location
	DSN         string        // database behind "table:" sources
	AsOf        string        // report date shown on the dashboard
	Addr        string        // HTTP listen address
	Format      string        // json, pretty, text, csv
	LoadTimeout time.Duration // upper bound on one full load
	Verbose     bool          // debug logs + progress bars
}
