package services

import (
	"context"
	"sort"
	"strings"

	"github.com/codyseavey/mtg-value-bot/internal/models"
)

// SourceAdapter fetches every known printing of a card from one provider.
// Implementations never panic on bad upstream data; every failure comes back
// as an *AdapterError.
type SourceAdapter interface {
	Name() string
	FetchEditions(ctx context.Context, cardName string) ([]models.EditionRecord, error)
}

// DedupeEditions applies last-write-wins by edition name to one adapter answer
func DedupeEditions(records []models.EditionRecord) []models.EditionRecord {
	return models.DedupeEditions(records)
}

// SelectEdition picks the single record a resolution reports.
// With a filter, the highest-priced record whose edition contains the filter
// (case-insensitive) wins, or the first match when none are priced. Without a
// filter, the highest positive price wins. Either way, when nothing qualifies
// the first record of the full list is returned.
func SelectEdition(records []models.EditionRecord, editionFilter string) (models.EditionRecord, bool) {
	if len(records) == 0 {
		return models.EditionRecord{}, false
	}

	candidates := records
	filter := strings.ToLower(strings.TrimSpace(editionFilter))
	if filter != "" {
		var matched []models.EditionRecord
		for _, r := range records {
			if strings.Contains(strings.ToLower(r.EditionName), filter) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			return records[0], true
		}
		candidates = matched
	}

	priced := make([]models.EditionRecord, 0, len(candidates))
	for _, r := range candidates {
		if r.HasPrice() {
			priced = append(priced, r)
		}
	}
	if len(priced) == 0 {
		return candidates[0], true
	}

	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].PriceUSD > priced[j].PriceUSD
	})
	return priced[0], true
}
