package database

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := normalizeTrackedCardKeys(db); err != nil {
		return err
	}
	if err := normalizeCacheKeys(db); err != nil {
		return err
	}
	return nil
}

// normalizeTrackedCardKeys backfills name_key for watchlist rows written before
// the column existed. Safe to run multiple times.
func normalizeTrackedCardKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable("tracked_cards") {
		return nil
	}

	result := db.Exec(`UPDATE tracked_cards SET name_key = LOWER(TRIM(name)) WHERE name_key IS NULL OR name_key = ''`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("rows", result.RowsAffected).Msg("backfilled name_key for tracked cards")
	}
	return nil
}

// normalizeCacheKeys lowercases cache keys imported with mixed case.
// When both spellings exist the already-normalized row wins and the other is dropped.
func normalizeCacheKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable("cached_edition_sets") {
		return nil
	}

	result := db.Exec(`
		DELETE FROM cached_edition_sets
		WHERE name_key != LOWER(TRIM(name_key))
		AND LOWER(TRIM(name_key)) IN (SELECT name_key FROM cached_edition_sets)
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("rows", result.RowsAffected).Msg("dropped shadowed cache rows")
	}

	result = db.Exec(`UPDATE OR IGNORE cached_edition_sets SET name_key = LOWER(TRIM(name_key)) WHERE name_key != LOWER(TRIM(name_key))`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("rows", result.RowsAffected).Msg("normalized cache keys")
	}

	// two mixed-case spellings of one name: the first rename won
	return db.Exec(`DELETE FROM cached_edition_sets WHERE name_key != LOWER(TRIM(name_key))`).Error
}
