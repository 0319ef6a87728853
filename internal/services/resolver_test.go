package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/database"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

type fakeAdapter struct {
	name    string
	mu      sync.Mutex
	records []models.EditionRecord
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchEditions(ctx context.Context, cardName string) ([]models.EditionRecord, error) {
	f.mu.Lock()
	f.calls++
	records, err, delay := f.records, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, adapterErr(f.name, cardName, ctx.Err())
		}
	}
	if err != nil {
		return nil, adapterErr(f.name, cardName, err)
	}
	return append([]models.EditionRecord(nil), records...), nil
}

func (f *fakeAdapter) set(records []models.EditionRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records, f.err = records, err
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type resolverFixture struct {
	db       *gorm.DB
	resolver *Resolver
	history  *HistoryStore
	cache    *EditionCache
	primary  *fakeAdapter
	backup   *fakeAdapter
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	db := openTestDB(t)
	history := NewHistoryStore(db, zerolog.Nop())
	cache, err := NewEditionCache(db, 16, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEditionCache() error = %v", err)
	}
	primary := &fakeAdapter{name: "scryfall"}
	backup := &fakeAdapter{name: "justtcg"}
	resolver := NewResolver(db, []SourceAdapter{primary, backup}, history, cache, config.ResolverConfig{
		AdapterTimeout:          time.Second,
		RSIPeriod:               14,
		MinRSIObservations:      15,
		MinForecastObservations: 5,
		ForecastHorizon:         6,
	}, zerolog.Nop())
	return &resolverFixture{db: db, resolver: resolver, history: history, cache: cache, primary: primary, backup: backup}
}

func knight(edition string, price float64) models.EditionRecord {
	return models.EditionRecord{CardName: "Black Knight", EditionName: edition, PriceUSD: price}
}

func TestResolve_PrimaryFailsSecondaryAnswers(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	f.primary.set(nil, fmt.Errorf("%w: scryfall API returned status 500", ErrUpstreamStatus))
	f.backup.set([]models.EditionRecord{knight("Alpha", 5.00)}, nil)

	got, err := f.resolver.Resolve(ctx, "black knight", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != models.SourceJustTCG {
		t.Errorf("source = %s, want justtcg", got.Source)
	}
	if got.CardName != "Black Knight" || got.EditionName != "Alpha" || got.PriceUSD != 5 {
		t.Errorf("unexpected resolution: %+v", got)
	}

	cached, ok := f.cache.Get(ctx, "Black Knight")
	if !ok || len(cached) != 1 || cached[0] != knight("Alpha", 5.00) {
		t.Errorf("cache = %+v, want exactly [{Alpha 5.00}]", cached)
	}
	if f.primary.callCount() != 1 || f.backup.callCount() != 1 {
		t.Errorf("each adapter must be called once, got %d/%d", f.primary.callCount(), f.backup.callCount())
	}
}

func TestResolve_StopsAtFirstNonEmptyAdapter(t *testing.T) {
	f := newResolverFixture(t)
	f.primary.set([]models.EditionRecord{knight("Alpha", 100)}, nil)
	f.backup.set([]models.EditionRecord{knight("Beta", 200)}, nil)

	got, err := f.resolver.Resolve(context.Background(), "Black Knight", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != models.SourceScryfall || got.EditionName != "Alpha" {
		t.Errorf("expected primary answer, got %+v", got)
	}
	if f.backup.callCount() != 0 {
		t.Errorf("secondary adapter should not be called, got %d calls", f.backup.callCount())
	}
}

func TestResolve_EmptyPrimaryFallsThrough(t *testing.T) {
	f := newResolverFixture(t)
	f.primary.set([]models.EditionRecord{}, nil)
	f.backup.set([]models.EditionRecord{knight("Beta", 200)}, nil)

	got, err := f.resolver.Resolve(context.Background(), "Black Knight", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != models.SourceJustTCG {
		t.Errorf("expected secondary answer after empty primary, got %s", got.Source)
	}
}

func TestResolve_CacheFallback(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	lotus := []models.EditionRecord{{CardName: "Black Lotus", EditionName: "Unlimited", PriceUSD: 3000}}
	if err := f.cache.Put(ctx, "black lotus", models.SourceScryfall, lotus); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	f.primary.set(nil, ErrUpstreamStatus)
	f.backup.set(nil, ErrRateLimited)

	got, err := f.resolver.Resolve(ctx, "Black Lotus", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != models.SourceCache || got.EditionName != "Unlimited" || got.PriceUSD != 3000 {
		t.Errorf("expected cached record, got %+v", got)
	}
	if got.RSI != nil {
		t.Errorf("expected nil RSI, got %v", *got.RSI)
	}
	if got.Forecast == nil || len(got.Forecast) != 0 {
		t.Errorf("expected empty forecast, got %v", got.Forecast)
	}

	cached, _ := f.cache.Get(ctx, "black lotus")
	if len(cached) != 1 || cached[0] != lotus[0] {
		t.Errorf("cache fallback must not alter the entry, got %+v", cached)
	}
}

func TestResolve_TotalFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.primary.set(nil, ErrUpstreamStatus)
	f.backup.set(nil, ErrCardNotFound)

	got, err := f.resolver.Resolve(context.Background(), "Imaginary Card", "")
	if got != nil {
		t.Errorf("expected no result, got %+v", got)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if resErr.Query != "Imaginary Card" {
		t.Errorf("query = %q, want original query", resErr.Query)
	}
	if !errors.Is(err, ErrResolutionFailed) {
		t.Error("expected ErrResolutionFailed in chain")
	}
}

func TestResolve_FilterMissReturnsFirstRecord(t *testing.T) {
	f := newResolverFixture(t)
	f.primary.set([]models.EditionRecord{knight("Alpha", 5), knight("Beta", 9)}, nil)

	got, err := f.resolver.Resolve(context.Background(), "Black Knight", "Foil")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.EditionName != "Alpha" {
		t.Errorf("filter miss should return first record, got %s", got.EditionName)
	}

	// Cache keeps the full unfiltered list regardless of the selection
	cached, _ := f.cache.Get(context.Background(), "black knight")
	if len(cached) != 2 {
		t.Errorf("cache should hold both editions, got %+v", cached)
	}
}

func TestResolve_HistoryOnlyGrowsForPricedSelections(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)

	f.primary.set([]models.EditionRecord{knight("Alpha", 0)}, nil)
	got, err := f.resolver.Resolve(ctx, "Black Knight", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got.HistoryPrices) != 0 {
		t.Errorf("unpriced view must not grow history, got %v", got.HistoryPrices)
	}

	f.primary.set([]models.EditionRecord{knight("Alpha", 4.5)}, nil)
	for i := 1; i <= 3; i++ {
		got, err = f.resolver.Resolve(ctx, "Black Knight", "")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if len(got.HistoryPrices) != i {
			t.Errorf("after %d priced resolutions series length = %d", i, len(got.HistoryPrices))
		}
		if len(got.HistoryDates) != len(got.HistoryPrices) {
			t.Errorf("dates and prices must align: %d vs %d", len(got.HistoryDates), len(got.HistoryPrices))
		}
	}
	for _, p := range got.HistoryPrices {
		if p <= 0 {
			t.Errorf("non-positive price %v in history", p)
		}
	}
}

func TestResolve_IndicatorThresholds(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	series := []float64{10, 12, 11, 13, 14, 12, 15, 16, 14, 17, 18, 16, 19, 20, 18}

	for i, p := range series {
		f.primary.set([]models.EditionRecord{knight("Alpha", p)}, nil)
		got, err := f.resolver.Resolve(ctx, "Black Knight", "Alpha")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		n := i + 1

		if n < 5 && len(got.Forecast) != 0 {
			t.Errorf("n=%d: forecast must be empty, got %v", n, got.Forecast)
		}
		if n >= 5 && len(got.Forecast) != 6 {
			t.Errorf("n=%d: expected 6 forecast points, got %d", n, len(got.Forecast))
		}
		if n < 15 && got.RSI != nil {
			t.Errorf("n=%d: RSI must be nil before 15 observations, got %v", n, *got.RSI)
		}
		if n == 15 {
			if got.RSI == nil {
				t.Fatal("expected RSI at 15 observations")
			}
			if *got.RSI != 65.38 {
				t.Errorf("RSI = %v, want 65.38", *got.RSI)
			}
		}
	}
}

func TestResolve_AdapterTimeoutFallsThrough(t *testing.T) {
	f := newResolverFixture(t)
	f.resolver.cfg.AdapterTimeout = 20 * time.Millisecond
	f.primary.delay = time.Second
	f.primary.set([]models.EditionRecord{knight("Slow", 1)}, nil)
	f.backup.set([]models.EditionRecord{knight("Fast", 2)}, nil)

	got, err := f.resolver.Resolve(context.Background(), "Black Knight", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.EditionName != "Fast" {
		t.Errorf("expected secondary after primary timeout, got %+v", got)
	}
}

func TestResolve_ConcurrentRequestsKeepEveryObservation(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	f.primary.set([]models.EditionRecord{knight("Alpha", 7)}, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.resolver.Resolve(ctx, "Black Knight", ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Resolve() error = %v", err)
	}

	n, err := f.history.Count(ctx, "Black Knight - Alpha")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != workers {
		t.Errorf("expected %d observations, got %d", workers, n)
	}
}

func TestListEditions(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	f.primary.set([]models.EditionRecord{knight("Alpha", 5), knight("Beta", 0), knight("Alpha", 6)}, nil)

	got, err := f.resolver.ListEditions(ctx, "Black Knight")
	if err != nil {
		t.Fatalf("ListEditions() error = %v", err)
	}
	if got.Total != 2 || got.Editions[0].PriceUSD != 6 {
		t.Errorf("expected deduplicated list, got %+v", got)
	}
	if n, _ := f.history.Count(ctx, "Black Knight - Alpha"); n != 0 {
		t.Errorf("listing must not append history, got %d", n)
	}
	if cached, ok := f.cache.Get(ctx, "black knight"); !ok || len(cached) != 2 {
		t.Errorf("listing should refresh cache, got %+v", cached)
	}

	f.primary.set(nil, ErrUpstreamStatus)
	got, err = f.resolver.ListEditions(ctx, "Black Knight")
	if err != nil {
		t.Fatalf("ListEditions() cache fallback error = %v", err)
	}
	if got.Source != models.SourceCache {
		t.Errorf("expected cache source, got %s", got.Source)
	}

	if _, err := f.resolver.ListEditions(ctx, "Unknown"); !errors.Is(err, ErrResolutionFailed) {
		t.Errorf("expected resolution failure, got %v", err)
	}
}

func TestListEditions_ImportedCacheHasUniqueEditions(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	legacy := `{"black lotus": [
		{"name": "Black Lotus", "edition_name": "Alpha", "price": 100},
		{"name": "Black Lotus", "edition_name": "Alpha", "price": 200}
	]}`
	if _, err := database.ImportLegacyCache(f.db, strings.NewReader(legacy), false); err != nil {
		t.Fatalf("ImportLegacyCache() error = %v", err)
	}
	f.primary.set(nil, ErrUpstreamStatus)
	f.backup.set(nil, ErrUpstreamStatus)

	got, err := f.resolver.ListEditions(ctx, "Black Lotus")
	if err != nil {
		t.Fatalf("ListEditions() error = %v", err)
	}
	if got.Source != models.SourceCache || got.Total != 1 || got.Editions[0].PriceUSD != 200 {
		t.Errorf("expected one Alpha record at 200 from cache, got %+v", got)
	}
}

func TestWarmCache(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	old := []models.EditionRecord{{CardName: "Mox Ruby", EditionName: "Alpha", PriceUSD: 8000}}
	_ = f.cache.Put(ctx, "Mox Ruby", models.SourceScryfall, old)

	f.primary.set([]models.EditionRecord{knight("Alpha", 5)}, nil)
	results := f.resolver.WarmCache(ctx, []string{"Black Knight"})
	if len(results) != 1 || results[0].Error != "" || results[0].Editions != 1 {
		t.Fatalf("unexpected warm result: %+v", results)
	}

	f.primary.set(nil, ErrUpstreamStatus)
	f.backup.set(nil, ErrUpstreamStatus)
	results = f.resolver.WarmCache(ctx, []string{"Mox Ruby"})
	if results[0].Error == "" {
		t.Error("expected an error when every adapter fails")
	}
	cached, _ := f.cache.Get(ctx, "mox ruby")
	if len(cached) != 1 || cached[0] != old[0] {
		t.Errorf("failed warm-up must leave the cache untouched, got %+v", cached)
	}
	if n, _ := f.history.Count(ctx, "Black Knight - Alpha"); n != 0 {
		t.Errorf("warm-up must not append history, got %d", n)
	}
}

func TestSourcesReportsQuota(t *testing.T) {
	f := newResolverFixture(t)
	justTCG := NewJustTCGService(config.JustTCGConfig{APIKey: "k", DailyLimit: 50}, zerolog.Nop())
	f.resolver.adapters = append(f.resolver.adapters, justTCG)

	sources := f.resolver.Sources()
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Name != "scryfall" || sources[0].Priority != 1 || sources[0].DailyLimit != nil {
		t.Errorf("unexpected primary status: %+v", sources[0])
	}
	last := sources[2]
	if last.DailyLimit == nil || *last.DailyLimit != 50 || last.RequestsRemaining == nil || *last.RequestsRemaining != 50 {
		t.Errorf("expected quota on justtcg status, got %+v", last)
	}
}
