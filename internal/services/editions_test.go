package services

import (
	"testing"

	"github.com/codyseavey/mtg-value-bot/internal/models"
)

func rec(edition string, price float64) models.EditionRecord {
	return models.EditionRecord{CardName: "Black Knight", EditionName: edition, PriceUSD: price}
}

func TestDedupeEditions_Empty(t *testing.T) {
	got := DedupeEditions(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestDedupeEditions_LastWriteWins(t *testing.T) {
	input := []models.EditionRecord{
		rec("Alpha", 100),
		rec("Beta", 80),
		rec("Alpha", 120),
		rec("Unlimited", 0),
		rec("Beta", 90),
	}

	got := DedupeEditions(input)

	if len(got) != 3 {
		t.Fatalf("expected 3 editions, got %d: %v", len(got), got)
	}
	wantOrder := []string{"Alpha", "Beta", "Unlimited"}
	wantPrice := []float64{120, 90, 0}
	for i := range wantOrder {
		if got[i].EditionName != wantOrder[i] {
			t.Errorf("position %d: edition %q, want %q", i, got[i].EditionName, wantOrder[i])
		}
		if got[i].PriceUSD != wantPrice[i] {
			t.Errorf("%s: price %v, want last occurrence %v", got[i].EditionName, got[i].PriceUSD, wantPrice[i])
		}
	}
}

func TestDedupeEditions_UniqueAndLast(t *testing.T) {
	input := []models.EditionRecord{
		rec("A", 1), rec("B", 2), rec("A", 3), rec("C", 4), rec("B", 5), rec("A", 6),
	}

	got := DedupeEditions(input)

	seen := map[string]bool{}
	for _, r := range got {
		if seen[r.EditionName] {
			t.Errorf("duplicate edition %q in output", r.EditionName)
		}
		seen[r.EditionName] = true

		var last models.EditionRecord
		for _, in := range input {
			if in.EditionName == r.EditionName {
				last = in
			}
		}
		if r != last {
			t.Errorf("edition %q = %+v, want last occurrence %+v", r.EditionName, r, last)
		}
	}
}

func TestSelectEdition(t *testing.T) {
	records := []models.EditionRecord{
		rec("Limited Edition Alpha", 900),
		rec("Limited Edition Beta", 1200),
		rec("Unlimited Edition", 0),
		rec("Fourth Edition Foil", 40),
	}

	tests := []struct {
		name    string
		records []models.EditionRecord
		filter  string
		want    string
	}{
		{"no filter picks highest price", records, "", "Limited Edition Beta"},
		{"filter substring is case-insensitive", records, "alpha", "Limited Edition Alpha"},
		{"filter picks highest priced match", records, "limited", "Limited Edition Beta"},
		{"filter miss falls back to first record", records, "Mystery", "Limited Edition Alpha"},
		{"filter match without price returns that match", records, "unlimited", "Unlimited Edition"},
		{"no priced records falls back to first", []models.EditionRecord{rec("Alpha", 0), rec("Beta", 0)}, "", "Alpha"},
		{"several unpriced matches return the first match", []models.EditionRecord{rec("Alpha", 50), rec("Revised Edition", 0), rec("Fourth Edition", 0)}, "edition", "Revised Edition"},
		{"foil filter miss returns first", []models.EditionRecord{rec("Alpha", 5), rec("Beta", 7)}, "Foil", "Alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectEdition(tt.records, tt.filter)
			if !ok {
				t.Fatal("expected a selection")
			}
			if got.EditionName != tt.want {
				t.Errorf("SelectEdition(%q) = %q, want %q", tt.filter, got.EditionName, tt.want)
			}
		})
	}
}

func TestSelectEdition_FilterMissMatchesFirstOfUnfiltered(t *testing.T) {
	records := []models.EditionRecord{rec("Zendikar", 1), rec("Alpha", 50)}

	missed, _ := SelectEdition(records, "no such edition")
	if missed != records[0] {
		t.Errorf("filter miss returned %+v, want first record %+v", missed, records[0])
	}
}

func TestSelectEdition_Empty(t *testing.T) {
	if _, ok := SelectEdition(nil, ""); ok {
		t.Error("expected no selection from an empty list")
	}
}
