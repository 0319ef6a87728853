package models

import (
	"time"
)

// TrackedCard is a watchlist entry checked by the tracker
type TrackedCard struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	NameKey        string     `json:"-" gorm:"not null;uniqueIndex"` // lowercased name
	Name           string     `json:"name" gorm:"not null"`
	LastEdition    string     `json:"last_edition"`
	LastPriceUSD   float64    `json:"last_price_usd"`
	LastCheckedAt  *time.Time `json:"last_checked_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at"`
	AddedAt        time.Time  `json:"added_at"`
}

type AddTrackedCardRequest struct {
	Name string `json:"name" binding:"required"`
}

// WatchlistChange describes the outcome of an add or remove
type WatchlistChange struct {
	Name    string `json:"name"`
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}
