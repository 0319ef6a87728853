package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/models"
)

// ErrNonPositivePrice rejects observations that would record "no price" as a price
var ErrNonPositivePrice = errors.New("observation price must be positive")

const defaultSearchLimit = 30

// HistoryStore is the append-only price time series, one series per HistoryKey.
// Rows are inserted and read; nothing in the service updates or deletes them.
type HistoryStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewHistoryStore creates a history store over an open database
func NewHistoryStore(db *gorm.DB, logger zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Append records one observation in its own transaction
func (h *HistoryStore) Append(ctx context.Context, obs models.PriceObservation) error {
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return h.appendWith(tx, &obs)
	})
	if err != nil {
		if errors.Is(err, ErrNonPositivePrice) {
			return err
		}
		return &PersistenceError{Op: "history append", Err: err}
	}
	return nil
}

func (h *HistoryStore) appendWith(tx *gorm.DB, obs *models.PriceObservation) error {
	if obs.PriceUSD <= 0 {
		return fmt.Errorf("%w: %s got %v", ErrNonPositivePrice, obs.HistoryKey, obs.PriceUSD)
	}
	if obs.HistoryKey == "" {
		obs.HistoryKey = models.HistoryKey(obs.CardName, obs.EditionName)
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now()
	}
	// stored as text; a single offset keeps chronological and lexical order equal
	obs.ObservedAt = obs.ObservedAt.UTC()
	obs.ID = 0
	return tx.Create(obs).Error
}

// Series returns every observation for key, oldest first. Rows sharing a
// timestamp keep insertion order.
func (h *HistoryStore) Series(ctx context.Context, key string) (models.HistorySeries, error) {
	return h.seriesWith(h.db.WithContext(ctx), key)
}

func (h *HistoryStore) seriesWith(db *gorm.DB, key string) (models.HistorySeries, error) {
	series := models.HistorySeries{Key: key, Observations: []models.PriceObservation{}}
	if err := db.Where("history_key = ?", key).Order("observed_at ASC, id ASC").Find(&series.Observations).Error; err != nil {
		return models.HistorySeries{Key: key, Observations: []models.PriceObservation{}}, err
	}
	return series, nil
}

// Count returns the number of observations stored for key
func (h *HistoryStore) Count(ctx context.Context, key string) (int64, error) {
	var n int64
	err := h.db.WithContext(ctx).Model(&models.PriceObservation{}).Where("history_key = ?", key).Count(&n).Error
	return n, err
}

// Search returns every series whose key contains substr (case-insensitive),
// each trimmed to its most recent limit observations within period.
// Period is one of "week", "month", "3month", "year", "all"; empty means all.
func (h *HistoryStore) Search(ctx context.Context, substr string, limit int, period string) ([]models.HistorySeries, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	db := h.db.WithContext(ctx)

	keyQuery := db.Model(&models.PriceObservation{}).Distinct("history_key").Order("history_key ASC")
	if needle := strings.ToLower(strings.TrimSpace(substr)); needle != "" {
		keyQuery = keyQuery.Where("INSTR(LOWER(history_key), ?) > 0", needle)
	}
	var keys []string
	if err := keyQuery.Pluck("history_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("list history keys: %w", err)
	}

	startDate := periodStart(period, time.Now().UTC())
	result := make([]models.HistorySeries, 0, len(keys))
	for _, key := range keys {
		query := db.Where("history_key = ?", key).Order("observed_at DESC, id DESC").Limit(limit)
		if !startDate.IsZero() {
			query = query.Where("observed_at >= ?", startDate)
		}
		var recent []models.PriceObservation
		if err := query.Find(&recent).Error; err != nil {
			return nil, fmt.Errorf("read history for %q: %w", key, err)
		}
		if len(recent) == 0 {
			continue
		}
		for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
			recent[i], recent[j] = recent[j], recent[i]
		}
		result = append(result, models.HistorySeries{Key: key, Observations: recent})
	}
	return result, nil
}

// periodStart maps a period name to the earliest timestamp it covers.
// The zero time means no lower bound.
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	case "3month":
		return now.AddDate(0, -3, 0)
	case "year":
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

// ValidPeriod reports whether period is a recognised history window
func ValidPeriod(period string) bool {
	switch period {
	case "", "week", "month", "3month", "year", "all":
		return true
	}
	return false
}
