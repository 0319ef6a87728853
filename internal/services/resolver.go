package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/indicators"
	"github.com/codyseavey/mtg-value-bot/internal/metrics"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

const defaultAdapterTimeout = 20 * time.Second

// Resolver turns a card query into one priced edition plus its history and
// indicators. Adapters are tried in order, then the Local Cache.
//
// Resolve has side effects: a priced selection appends to history, and a live
// fetch replaces the Local Cache entry for the query name. Both writes share
// one transaction, and commits are serialized across goroutines.
type Resolver struct {
	adapters []SourceAdapter
	db       *gorm.DB
	history  *HistoryStore
	cache    *EditionCache
	cfg      config.ResolverConfig
	logger   zerolog.Logger

	commitMu sync.Mutex
}

// NewResolver wires the adapter chain to the stores. Adapters are consulted in
// the order given.
func NewResolver(db *gorm.DB, adapters []SourceAdapter, history *HistoryStore, cache *EditionCache, cfg config.ResolverConfig, logger zerolog.Logger) *Resolver {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = defaultAdapterTimeout
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = indicators.DefaultRSIPeriod
	}
	if cfg.MinRSIObservations <= cfg.RSIPeriod {
		cfg.MinRSIObservations = cfg.RSIPeriod + 1
	}
	if cfg.MinForecastObservations < indicators.MinForecastPoints {
		cfg.MinForecastObservations = indicators.MinForecastPoints
	}
	if cfg.ForecastHorizon <= 0 {
		cfg.ForecastHorizon = indicators.DefaultForecastHorizon
	}

	return &Resolver{
		adapters: adapters,
		db:       db,
		history:  history,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// AdapterNames lists the chain in priority order
func (r *Resolver) AdapterNames() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// QuotaReporter is implemented by adapters that enforce a daily request budget
type QuotaReporter interface {
	GetRequestsRemaining() int
	GetDailyLimit() int
	GetResetTime() time.Time
}

// SourceStatus describes one adapter in the chain
type SourceStatus struct {
	Name              string     `json:"name"`
	Priority          int        `json:"priority"`
	RequestsRemaining *int       `json:"requests_remaining,omitempty"`
	DailyLimit        *int       `json:"daily_limit,omitempty"`
	ResetsAt          *time.Time `json:"resets_at,omitempty"`
}

// Sources reports the chain in priority order, with quota for adapters that have one
func (r *Resolver) Sources() []SourceStatus {
	statuses := make([]SourceStatus, len(r.adapters))
	for i, a := range r.adapters {
		statuses[i] = SourceStatus{Name: a.Name(), Priority: i + 1}
		if q, ok := a.(QuotaReporter); ok {
			remaining, limit, reset := q.GetRequestsRemaining(), q.GetDailyLimit(), q.GetResetTime()
			statuses[i].RequestsRemaining = &remaining
			statuses[i].DailyLimit = &limit
			statuses[i].ResetsAt = &reset
		}
	}
	return statuses
}

// Resolve picks one edition of cardName, optionally narrowed by a
// case-insensitive edition substring. A miss on the filter falls back to the
// first edition, never to an error. Returns *ResolutionError when no adapter
// and no cache entry produced editions, and *PersistenceError when the
// history/cache write could not be committed.
func (r *Resolver) Resolve(ctx context.Context, cardName, editionFilter string) (*models.ResolvedCard, error) {
	query := strings.TrimSpace(cardName)

	records, source, ok := r.editionsFor(ctx, query)
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("failed").Inc()
		r.logger.Info().Str("query", query).Msg("resolution failed: no adapter or cache entry")
		return nil, &ResolutionError{Query: query}
	}

	selected, _ := SelectEdition(records, editionFilter)
	key := selected.HistoryKey()

	series, err := r.commit(ctx, query, selected, source, records)
	if err != nil {
		return nil, err
	}
	metrics.ResolutionsTotal.WithLabelValues(string(source)).Inc()

	prices := series.Prices()
	resolved := &models.ResolvedCard{
		Query:         query,
		CardName:      selected.CardName,
		EditionName:   selected.EditionName,
		PriceUSD:      selected.PriceUSD,
		ImageURL:      selected.ImageURL,
		Source:        source,
		Forecast:      []float64{},
		HistoryDates:  series.Dates(),
		HistoryPrices: prices,
		EditionCount:  len(records),
	}
	if len(prices) >= r.cfg.MinRSIObservations {
		if rsi, ok := indicators.RSI(prices, r.cfg.RSIPeriod); ok {
			resolved.RSI = &rsi
		}
	}
	if len(prices) >= r.cfg.MinForecastObservations {
		resolved.Forecast = indicators.Forecast(prices, r.cfg.ForecastHorizon)
	}

	r.logger.Debug().
		Str("query", query).
		Str("key", key).
		Str("source", string(source)).
		Float64("price", selected.PriceUSD).
		Int("observations", len(prices)).
		Msg("resolved card")
	return resolved, nil
}

// commit appends the observation and refreshes the cache in one transaction,
// then reads back the full series for the selected key
func (r *Resolver) commit(ctx context.Context, query string, selected models.EditionRecord, source models.PriceSource, records []models.EditionRecord) (models.HistorySeries, error) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	live := source != models.SourceCache
	appended := false
	fetchedAt := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if selected.HasPrice() {
			obs := models.PriceObservation{
				HistoryKey:  selected.HistoryKey(),
				CardName:    selected.CardName,
				EditionName: selected.EditionName,
				PriceUSD:    selected.PriceUSD,
				Source:      source,
				ObservedAt:  time.Now().UTC(),
			}
			if err := r.history.appendWith(tx, &obs); err != nil {
				return &PersistenceError{Op: "history append", Err: err}
			}
			appended = true
		}
		if live {
			if err := r.cache.putWith(tx, query, source, records, fetchedAt); err != nil {
				return &PersistenceError{Op: "cache put", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		metrics.PersistenceErrorsTotal.WithLabelValues("resolve_commit").Inc()
		r.logger.Error().Err(err).Str("query", query).Msg("failed to persist resolution")
		return models.HistorySeries{}, err
	}

	if appended {
		metrics.HistoryAppendsTotal.Inc()
	}
	if live {
		r.cache.remember(query, records, fetchedAt)
	}

	series, err := r.history.Series(ctx, selected.HistoryKey())
	if err != nil {
		metrics.PersistenceErrorsTotal.WithLabelValues("history_read").Inc()
		r.logger.Error().Err(err).Str("key", selected.HistoryKey()).Msg("history read failed, treating as empty")
	}
	return series, nil
}

// ListEditions returns the deduplicated edition list for cardName from the
// same chain Resolve uses. A live answer also refreshes the Local Cache.
func (r *Resolver) ListEditions(ctx context.Context, cardName string) (*models.EditionListResult, error) {
	query := strings.TrimSpace(cardName)

	records, source, ok := r.editionsFor(ctx, query)
	if !ok {
		r.logger.Info().Str("query", query).Msg("edition listing failed: no adapter or cache entry")
		return nil, &ResolutionError{Query: query}
	}

	if source != models.SourceCache {
		r.commitMu.Lock()
		err := r.cache.Put(ctx, query, source, records)
		r.commitMu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	return &models.EditionListResult{
		Query:    query,
		Source:   source,
		Editions: records,
		Total:    len(records),
	}, nil
}

// WarmResult is the outcome of warming the cache for one name
type WarmResult struct {
	Name     string             `json:"name"`
	Source   models.PriceSource `json:"source,omitempty"`
	Editions int                `json:"editions"`
	Error    string             `json:"error,omitempty"`
}

// WarmCache fetches each name live and stores the edition list without
// touching history. Names no adapter can answer leave their cache entry as is.
func (r *Resolver) WarmCache(ctx context.Context, names []string) []WarmResult {
	results := make([]WarmResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		query := strings.TrimSpace(name)
		result := WarmResult{Name: query}

		records, source, ok := r.fetchLive(ctx, query)
		if !ok {
			result.Error = ErrResolutionFailed.Error()
			results = append(results, result)
			continue
		}

		r.commitMu.Lock()
		err := r.cache.Put(ctx, query, source, records)
		r.commitMu.Unlock()
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Source = source
			result.Editions = len(records)
		}
		results = append(results, result)
	}
	return results
}

// editionsFor runs the adapter chain and falls back to the Local Cache
func (r *Resolver) editionsFor(ctx context.Context, query string) ([]models.EditionRecord, models.PriceSource, bool) {
	if query == "" {
		return nil, "", false
	}
	if records, source, ok := r.fetchLive(ctx, query); ok {
		return records, source, true
	}
	if records, ok := r.cache.Get(ctx, query); ok {
		r.logger.Info().Str("query", query).Msg("all adapters failed, serving cached editions")
		return records, models.SourceCache, true
	}
	return nil, "", false
}

// fetchLive tries each adapter once, in order, and stops at the first
// non-empty answer
func (r *Resolver) fetchLive(ctx context.Context, query string) ([]models.EditionRecord, models.PriceSource, bool) {
	for _, adapter := range r.adapters {
		records, err := r.callAdapter(ctx, adapter, query)
		if err != nil {
			r.logger.Warn().Err(err).Str("adapter", adapter.Name()).Str("query", query).Msg("adapter failed")
			continue
		}
		records = DedupeEditions(records)
		if len(records) == 0 {
			metrics.AdapterRequestsTotal.WithLabelValues(adapter.Name(), "empty").Inc()
			continue
		}
		return records, models.PriceSource(adapter.Name()), true
	}
	return nil, "", false
}

func (r *Resolver) callAdapter(ctx context.Context, adapter SourceAdapter, query string) ([]models.EditionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.AdapterTimeout)
	defer cancel()

	records, err := adapter.FetchEditions(ctx, query)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, adapterErr(adapter.Name(), query, ctx.Err())
	}
	return records, nil
}
