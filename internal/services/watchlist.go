package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/mtg-value-bot/internal/metrics"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

// ErrEmptyCardName is returned when a watchlist name is blank
var ErrEmptyCardName = errors.New("card name is required")

// Watchlist owns the persisted set of tracked card names
type Watchlist struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewWatchlist(db *gorm.DB, logger zerolog.Logger) *Watchlist {
	return &Watchlist{
		db:     db,
		logger: logger.With().Str("component", "watchlist").Logger(),
	}
}

// Seed adds names only when the watchlist has never held anything
func (w *Watchlist) Seed(ctx context.Context, names []string) error {
	var count int64
	if err := w.db.WithContext(ctx).Model(&models.TrackedCard{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count tracked cards: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, name := range names {
		if _, err := w.Add(ctx, name); err != nil && !errors.Is(err, ErrEmptyCardName) {
			return err
		}
	}
	return nil
}

// Add tracks name. Adding a name that is already tracked is reported in the
// change, not as an error.
func (w *Watchlist) Add(ctx context.Context, name string) (models.WatchlistChange, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.WatchlistChange{}, ErrEmptyCardName
	}

	card := models.TrackedCard{
		NameKey: models.CacheKey(name),
		Name:    name,
		AddedAt: time.Now().UTC(),
	}
	result := w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&card)
	if result.Error != nil {
		return models.WatchlistChange{}, fmt.Errorf("add tracked card: %w", result.Error)
	}
	w.refreshGauge(ctx)

	if result.RowsAffected == 0 {
		return models.WatchlistChange{Name: name, Changed: false, Message: fmt.Sprintf("%s is already tracked", name)}, nil
	}
	w.logger.Info().Str("card", name).Msg("card added to watchlist")
	return models.WatchlistChange{Name: name, Changed: true, Message: fmt.Sprintf("now tracking %s", name)}, nil
}

// Remove stops tracking name. Removing an untracked name is reported, not an error.
func (w *Watchlist) Remove(ctx context.Context, name string) (models.WatchlistChange, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.WatchlistChange{}, ErrEmptyCardName
	}

	result := w.db.WithContext(ctx).Where("name_key = ?", models.CacheKey(name)).Delete(&models.TrackedCard{})
	if result.Error != nil {
		return models.WatchlistChange{}, fmt.Errorf("remove tracked card: %w", result.Error)
	}
	w.refreshGauge(ctx)

	if result.RowsAffected == 0 {
		return models.WatchlistChange{Name: name, Changed: false, Message: fmt.Sprintf("%s is not tracked", name)}, nil
	}
	w.logger.Info().Str("card", name).Msg("card removed from watchlist")
	return models.WatchlistChange{Name: name, Changed: true, Message: fmt.Sprintf("stopped tracking %s", name)}, nil
}

// List returns every tracked card in the order it was added
func (w *Watchlist) List(ctx context.Context) ([]models.TrackedCard, error) {
	cards := []models.TrackedCard{}
	if err := w.db.WithContext(ctx).Order("id ASC").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list tracked cards: %w", err)
	}
	return cards, nil
}

// RecordCheck stores the latest observed edition and price for a tracked card
func (w *Watchlist) RecordCheck(ctx context.Context, id uint, edition string, price float64, notified bool) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"last_edition":    edition,
		"last_price_usd":  price,
		"last_checked_at": now,
	}
	if notified {
		updates["last_notified_at"] = now
	}
	return w.db.WithContext(ctx).Model(&models.TrackedCard{}).Where("id = ?", id).Updates(updates).Error
}

func (w *Watchlist) refreshGauge(ctx context.Context) {
	var count int64
	if err := w.db.WithContext(ctx).Model(&models.TrackedCard{}).Count(&count).Error; err == nil {
		metrics.TrackedCards.Set(float64(count))
	}
}
