package models

import (
	"time"
)

// CachedEditionSet is the Local Cache row: the last full edition list fetched live
// for a lowercased card name. Rows are replaced wholesale, never merged.
type CachedEditionSet struct {
	NameKey   string          `json:"name_key" gorm:"primaryKey"`
	Source    PriceSource     `json:"source"`
	Records   []EditionRecord `json:"records" gorm:"serializer:json"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// HistoryResponse is the API response for a history search
type HistoryResponse struct {
	Query  string          `json:"query"`
	Period string          `json:"period"` // "week", "month", "3month", "year", "all"
	Series []HistorySeries `json:"series"`
}
