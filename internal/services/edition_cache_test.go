package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codyseavey/mtg-value-bot/internal/models"
)

func TestEditionCachePutGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cache, err := NewEditionCache(db, 8, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEditionCache() error = %v", err)
	}

	if _, ok := cache.Get(ctx, "Black Lotus"); ok {
		t.Fatal("expected miss on empty cache")
	}

	first := []models.EditionRecord{
		{CardName: "Black Lotus", EditionName: "Alpha", PriceUSD: 20000},
		{CardName: "Black Lotus", EditionName: "Unlimited", PriceUSD: 3000},
	}
	if err := cache.Put(ctx, "Black Lotus", models.SourceScryfall, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := cache.Get(ctx, "  BLACK lotus ")
	if !ok {
		t.Fatal("expected hit with differently cased name")
	}
	if len(got) != 2 || got[1].EditionName != "Unlimited" {
		t.Errorf("unexpected records: %+v", got)
	}

	// Wholesale overwrite, not merge
	second := []models.EditionRecord{{CardName: "Black Lotus", EditionName: "Beta", PriceUSD: 15000}}
	if err := cache.Put(ctx, "black lotus", models.SourceJustTCG, second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ = cache.Get(ctx, "Black Lotus")
	if len(got) != 1 || got[0].EditionName != "Beta" {
		t.Errorf("expected overwrite with second list, got %+v", got)
	}

	n, err := cache.Len(ctx)
	if err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1 row", n, err)
	}
}

func TestEditionCacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cache, _ := NewEditionCache(db, 8, zerolog.Nop())
	records := []models.EditionRecord{{CardName: "Mox Pearl", EditionName: "Alpha", PriceUSD: 9000, ImageURL: "https://img/mox.jpg"}}
	if err := cache.Put(ctx, "Mox Pearl", models.SourceScryfall, records); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A fresh instance has an empty memory layer and must read the table
	reopened, _ := NewEditionCache(db, 8, zerolog.Nop())
	got, ok := reopened.Get(ctx, "mox pearl")
	if !ok {
		t.Fatal("expected durable hit")
	}
	if got[0] != records[0] {
		t.Errorf("got %+v, want %+v", got[0], records[0])
	}
}

func TestEditionCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache, _ := NewEditionCache(openTestDB(t), 8, zerolog.Nop())
	records := []models.EditionRecord{{CardName: "Opt", EditionName: "Ixalan", PriceUSD: 0.1}}
	_ = cache.Put(ctx, "Opt", models.SourceScryfall, records)

	records[0].PriceUSD = 99
	got, _ := cache.Get(ctx, "opt")
	got[0].PriceUSD = 42

	again, _ := cache.Get(ctx, "opt")
	if again[0].PriceUSD != 0.1 {
		t.Errorf("cache entry was mutated through a caller slice: %v", again[0].PriceUSD)
	}
}

func TestEditionCacheWriteFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cache, _ := NewEditionCache(db, 8, zerolog.Nop())

	if err := db.Migrator().DropTable(&models.CachedEditionSet{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	err := cache.Put(ctx, "Sol Ring", models.SourceScryfall, []models.EditionRecord{{EditionName: "Alpha"}})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistenceError, got %v", err)
	}

	// Read failure is treated as an empty cache
	if _, ok := cache.Get(ctx, "Anything Else"); ok {
		t.Error("expected miss when the table is unreadable")
	}
}

func TestEditionCacheSeesWritesFromOtherInstances(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	writer, _ := NewEditionCache(db, 8, zerolog.Nop())
	reader, _ := NewEditionCache(db, 8, zerolog.Nop())

	if err := writer.Put(ctx, "Sol Ring", models.SourceScryfall, []models.EditionRecord{{EditionName: "Old", PriceUSD: 1}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, ok := reader.Get(ctx, "sol ring"); !ok || got[0].EditionName != "Old" {
		t.Fatalf("expected first snapshot, got %+v", got)
	}

	if err := writer.Put(ctx, "Sol Ring", models.SourceScryfall, []models.EditionRecord{{EditionName: "New", PriceUSD: 2}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := reader.Get(ctx, "sol ring")
	if !ok || len(got) != 1 || got[0].EditionName != "New" {
		t.Errorf("reader kept a stale memory copy: %+v", got)
	}

	if err := db.Where("name_key = ?", "sol ring").Delete(&models.CachedEditionSet{}).Error; err != nil {
		t.Fatalf("delete row: %v", err)
	}
	if got, ok := reader.Get(ctx, "sol ring"); ok {
		t.Errorf("expected miss once the row is gone, got %+v", got)
	}
}
