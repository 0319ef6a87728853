package services

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/mtg-value-bot/internal/metrics"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

const defaultMemoryEntries = 512

// EditionCache is the Local Cache: the last full edition list fetched live per
// lowercased card name. SQLite holds the durable copy; an LRU fronts reads.
// Entries are replaced wholesale and never expire.
type EditionCache struct {
	db     *gorm.DB
	memory *lru.Cache[string, cachedEntry]
	logger zerolog.Logger
}

// cachedEntry is a memory copy of one row, valid while the row's fetched_at
// still matches. Other processes may write the same database file.
type cachedEntry struct {
	records   []models.EditionRecord
	fetchedAt time.Time
}

// NewEditionCache creates the cache. memoryEntries <= 0 uses the default size.
func NewEditionCache(db *gorm.DB, memoryEntries int, logger zerolog.Logger) (*EditionCache, error) {
	if memoryEntries <= 0 {
		memoryEntries = defaultMemoryEntries
	}
	memory, err := lru.New[string, cachedEntry](memoryEntries)
	if err != nil {
		return nil, err
	}
	return &EditionCache{
		db:     db,
		memory: memory,
		logger: logger.With().Str("component", "edition_cache").Logger(),
	}, nil
}

// Get returns the cached edition list for name. The memory copy is served only
// when SQLite still holds the same fetch; a failed read is logged and reported
// as a miss.
func (c *EditionCache) Get(ctx context.Context, name string) ([]models.EditionRecord, bool) {
	key := models.CacheKey(name)
	if key == "" {
		return nil, false
	}
	db := c.db.WithContext(ctx)

	if entry, ok := c.memory.Get(key); ok {
		var stamp models.CachedEditionSet
		err := db.Select("fetched_at").Where("name_key = ?", key).Take(&stamp).Error
		switch {
		case err == nil && stamp.FetchedAt.Equal(entry.fetchedAt):
			metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
			return cloneRecords(entry.records), true
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.memory.Remove(key)
			metrics.CacheLookupsTotal.WithLabelValues("db", "miss").Inc()
			return nil, false
		case err != nil:
			metrics.PersistenceErrorsTotal.WithLabelValues("cache_read").Inc()
			c.logger.Warn().Err(err).Str("key", key).Msg("cache freshness check failed, serving memory copy")
			metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
			return cloneRecords(entry.records), true
		}
		c.logger.Debug().Str("key", key).Msg("memory copy is stale, reloading")
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()

	var row models.CachedEditionSet
	err := db.Where("name_key = ?", key).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PersistenceErrorsTotal.WithLabelValues("cache_read").Inc()
			c.logger.Error().Err(err).Str("key", key).Msg("cache read failed, treating as empty")
		}
		metrics.CacheLookupsTotal.WithLabelValues("db", "miss").Inc()
		return nil, false
	}
	if len(row.Records) == 0 {
		metrics.CacheLookupsTotal.WithLabelValues("db", "miss").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("db", "hit").Inc()
	c.remember(key, row.Records, row.FetchedAt)
	return cloneRecords(row.Records), true
}

// Put replaces the entry for name with records
func (c *EditionCache) Put(ctx context.Context, name string, source models.PriceSource, records []models.EditionRecord) error {
	fetchedAt := time.Now().UTC()
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return c.putWith(tx, name, source, records, fetchedAt)
	})
	if err != nil {
		metrics.PersistenceErrorsTotal.WithLabelValues("cache_write").Inc()
		return &PersistenceError{Op: "cache put", Err: err}
	}
	c.remember(name, records, fetchedAt)
	return nil
}

// putWith writes the durable row inside tx. The memory layer is only updated
// by remember, once the caller's transaction has committed.
func (c *EditionCache) putWith(tx *gorm.DB, name string, source models.PriceSource, records []models.EditionRecord, fetchedAt time.Time) error {
	row := models.CachedEditionSet{
		NameKey:   models.CacheKey(name),
		Source:    source,
		Records:   cloneRecords(records),
		FetchedAt: fetchedAt,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (c *EditionCache) remember(name string, records []models.EditionRecord, fetchedAt time.Time) {
	c.memory.Add(models.CacheKey(name), cachedEntry{records: cloneRecords(records), fetchedAt: fetchedAt})
}

// Len returns the number of durable cache entries
func (c *EditionCache) Len(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&models.CachedEditionSet{}).Count(&n).Error
	return n, err
}

func cloneRecords(records []models.EditionRecord) []models.EditionRecord {
	out := make([]models.EditionRecord, len(records))
	copy(out, records)
	return out
}
