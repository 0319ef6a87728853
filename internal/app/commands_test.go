package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/database"
	"github.com/codyseavey/mtg-value-bot/internal/models"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

type tableAdapter map[string][]models.EditionRecord

func (tableAdapter) Name() string { return "table" }

func (t tableAdapter) FetchEditions(_ context.Context, name string) ([]models.EditionRecord, error) {
	if records, ok := t[models.CacheKey(name)]; ok {
		return records, nil
	}
	return nil, &services.AdapterError{Adapter: "table", Query: name, Err: services.ErrCardNotFound}
}

func newTestApp(t *testing.T, adapter services.SourceAdapter) *App {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "cli.db"), "silent")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	logger := zerolog.Nop()
	a := &App{Config: testConfig(t), Logger: logger, DB: db}
	a.History = services.NewHistoryStore(db, logger)
	a.Cache, _ = services.NewEditionCache(db, 4, logger)
	a.Resolver = services.NewResolver(db, []services.SourceAdapter{adapter}, a.History, a.Cache, config.ResolverConfig{AdapterTimeout: time.Second}, logger)
	a.Watchlist = services.NewWatchlist(db, logger)
	a.Tracker = services.NewTracker(a.Resolver, a.Watchlist, services.NewLogNotifier(logger), time.Hour, logger)
	return a
}

var forceOfWill = tableAdapter{
	"force of will": {
		{CardName: "Force of Will", EditionName: "Alliances", PriceUSD: 95.5},
		{CardName: "Force of Will", EditionName: "Eternal Masters", PriceUSD: 70},
	},
}

func TestLookupAndHistory(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, forceOfWill)

	var out bytes.Buffer
	if err := a.Lookup(ctx, &out, "Force of Will", ""); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	for _, want := range []string{"Force of Will (Alliances)", "$95.50", "not enough history"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("lookup output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := a.ShowHistory(ctx, &out, "will", 10, "all"); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if !strings.Contains(out.String(), "Force of Will - Alliances") {
		t.Errorf("history output missing key:\n%s", out.String())
	}

	if err := a.ShowHistory(ctx, &out, "will", 10, "decade"); err == nil {
		t.Error("expected error for unknown period")
	}

	err := a.Lookup(ctx, &out, "Unknown Card", "")
	if !errors.Is(err, services.ErrResolutionFailed) {
		t.Errorf("expected resolution failure, got %v", err)
	}
}

func TestEditionsAndWarmCache(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, forceOfWill)

	var out bytes.Buffer
	if err := a.WarmCache(ctx, &out, []string{"Force of Will", "Unknown Card"}); err != nil {
		t.Fatalf("WarmCache() error = %v", err)
	}
	if n, _ := a.Cache.Len(ctx); n != 1 {
		t.Errorf("cache rows = %d, want 1", n)
	}
	if err := a.WarmCache(ctx, &out, []string{"Unknown Card"}); err == nil {
		t.Error("expected error when nothing could be warmed")
	}

	out.Reset()
	if err := a.Editions(ctx, &out, "force of will"); err != nil {
		t.Fatalf("Editions() error = %v", err)
	}
	if !strings.Contains(out.String(), "Eternal Masters") || !strings.Contains(out.String(), "2 editions") {
		t.Errorf("unexpected editions output:\n%s", out.String())
	}
}

func TestTrackCommands(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, forceOfWill)

	var out bytes.Buffer
	if err := a.TrackList(ctx, &out); err != nil || !strings.Contains(out.String(), "empty") {
		t.Fatalf("TrackList() on empty list = %q, %v", out.String(), err)
	}

	out.Reset()
	_ = a.TrackAdd(ctx, &out, "Force of Will")
	_ = a.TrackAdd(ctx, &out, "force of will")
	if !strings.Contains(out.String(), "already tracked") {
		t.Errorf("duplicate add should be reported:\n%s", out.String())
	}

	if _, err := a.Tracker.CheckAll(ctx); err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}
	out.Reset()
	if err := a.TrackList(ctx, &out); err != nil {
		t.Fatalf("TrackList() error = %v", err)
	}
	if !strings.Contains(out.String(), "$95.50") {
		t.Errorf("expected last price in listing:\n%s", out.String())
	}

	out.Reset()
	_ = a.TrackRemove(ctx, &out, "Force of Will")
	_ = a.TrackRemove(ctx, &out, "Force of Will")
	if !strings.Contains(out.String(), "not tracked") {
		t.Errorf("missing remove should be reported:\n%s", out.String())
	}
}
