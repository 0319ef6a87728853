package models

import (
	"strings"
)

// PriceSource names where a resolved edition list came from
type PriceSource string

const (
	SourceScryfall PriceSource = "scryfall"
	SourceJustTCG  PriceSource = "justtcg"
	SourceCache    PriceSource = "cache"
)

// EditionRecord is one printing of a card as seen by a provider.
// CardName is the provider's canonical name, never the user's typed input.
type EditionRecord struct {
	CardName    string  `json:"card_name"`
	EditionName string  `json:"edition_name"`
	PriceUSD    float64 `json:"price_usd"` // 0 means no market price known
	ImageURL    string  `json:"image_url,omitempty"`
}

// HasPrice reports whether the record carries a usable market price
func (r EditionRecord) HasPrice() bool {
	return r.PriceUSD > 0
}

// HistoryKey returns the identity price observations accumulate under
func (r EditionRecord) HistoryKey() string {
	return HistoryKey(r.CardName, r.EditionName)
}

// HistoryKey formats "{card_name} - {edition_name}"
func HistoryKey(cardName, editionName string) string {
	return cardName + " - " + editionName
}

// CacheKey normalizes a card name for Local Cache lookups
func CacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DedupeEditions keys records by edition name. A later duplicate replaces the
// earlier one in place, so output order is the first-seen order of each name.
func DedupeEditions(records []EditionRecord) []EditionRecord {
	if len(records) == 0 {
		return []EditionRecord{}
	}

	index := make(map[string]int, len(records))
	out := make([]EditionRecord, 0, len(records))
	for _, r := range records {
		if i, exists := index[r.EditionName]; exists {
			out[i] = r
			continue
		}
		index[r.EditionName] = len(out)
		out = append(out, r)
	}
	return out
}

// ResolvedCard is the successful outcome of a resolution
type ResolvedCard struct {
	Query         string      `json:"query"`
	CardName      string      `json:"card_name"`
	EditionName   string      `json:"edition_name"`
	PriceUSD      float64     `json:"price_usd"`
	ImageURL      string      `json:"image_url,omitempty"`
	Source        PriceSource `json:"source"`
	RSI           *float64    `json:"rsi"`
	Forecast      []float64   `json:"forecast"`
	HistoryDates  []string    `json:"history_dates"`
	HistoryPrices []float64   `json:"history_prices"`
	EditionCount  int         `json:"edition_count"`
}

// EditionListResult is the response for an edition listing
type EditionListResult struct {
	Query    string          `json:"query"`
	Source   PriceSource     `json:"source"`
	Editions []EditionRecord `json:"editions"`
	Total    int             `json:"total"`
}
