package models

import (
	"time"
)

// HistoryDateFormat is how observation timestamps are rendered for charts and listings
const HistoryDateFormat = "2006-01-02 15:04"

// PriceObservation is one append-only entry in a HistorySeries.
// Rows are only ever inserted; nothing updates or deletes them.
type PriceObservation struct {
	ID          uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	HistoryKey  string      `json:"history_key" gorm:"not null;index:idx_obs_key_time"`
	CardName    string      `json:"card_name" gorm:"not null"`
	EditionName string      `json:"edition_name" gorm:"not null"`
	PriceUSD    float64     `json:"price_usd" gorm:"not null"`
	Source      PriceSource `json:"source"`
	ObservedAt  time.Time   `json:"observed_at" gorm:"not null;index:idx_obs_key_time"`
}

// HistorySeries is the ordered observation list for one HistoryKey
type HistorySeries struct {
	Key          string             `json:"key"`
	Observations []PriceObservation `json:"observations"`
}

// Prices returns the chronological price sequence
func (s HistorySeries) Prices() []float64 {
	prices := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		prices[i] = o.PriceUSD
	}
	return prices
}

// Dates returns the formatted observation timestamps
func (s HistorySeries) Dates() []string {
	dates := make([]string, len(s.Observations))
	for i, o := range s.Observations {
		dates[i] = o.ObservedAt.Format(HistoryDateFormat)
	}
	return dates
}

// Len returns the number of observations
func (s HistorySeries) Len() int {
	return len(s.Observations)
}
