package database

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/models"
)

// legacyTimeFormats are the timestamp layouts found in old history files
var legacyTimeFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// legacyObservation is one entry of the old JSON history file
type legacyObservation struct {
	Fecha   string `json:"fecha"`
	Precio  any    `json:"precio"`
	Edicion string `json:"edicion"`
}

// legacyRecord is one entry of the old JSON cache file; field names varied across versions
type legacyRecord struct {
	Nombre      string `json:"nombre"`
	Name        string `json:"name"`
	Edicion     string `json:"edicion"`
	EditionName string `json:"edition_name"`
	Precio      any    `json:"precio"`
	Price       any    `json:"price"`
	ImageURL    string `json:"image_url"`
}

// ImportReport summarizes a legacy import run
type ImportReport struct {
	Keys     int `json:"keys"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportLegacyHistory reads a {"Card - Edition": [{fecha, precio, edicion}]} file
// and appends every positive-price entry not already present. Nothing is
// written when dryRun is set; the report still counts what would be imported.
func ImportLegacyHistory(db *gorm.DB, r io.Reader, dryRun bool) (ImportReport, error) {
	var raw map[string][]legacyObservation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return ImportReport{}, fmt.Errorf("decode legacy history: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := ImportReport{Keys: len(keys)}
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			cardName, editionFromKey, _ := strings.Cut(key, " - ")
			for _, entry := range raw[key] {
				price := coercePrice(entry.Precio)
				observedAt, ok := parseLegacyTime(entry.Fecha)
				if price <= 0 || !ok {
					report.Skipped++
					continue
				}

				edition := strings.TrimSpace(entry.Edicion)
				if edition == "" {
					edition = editionFromKey
				}

				var existing int64
				if err := tx.Model(&models.PriceObservation{}).
					Where("history_key = ? AND observed_at = ? AND price_usd = ?", key, observedAt, price).
					Count(&existing).Error; err != nil {
					return err
				}
				if existing > 0 {
					report.Skipped++
					continue
				}

				report.Imported++
				if dryRun {
					continue
				}
				obs := models.PriceObservation{
					HistoryKey:  key,
					CardName:    cardName,
					EditionName: edition,
					PriceUSD:    price,
					Source:      models.PriceSource("legacy"),
					ObservedAt:  observedAt,
				}
				if err := tx.Create(&obs).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, fmt.Errorf("import legacy history: %w", err)
	}
	return report, nil
}

// ImportLegacyCache reads a {"lowercased name": [records]} file and replaces the
// Local Cache entry for each name, unless a newer live fetch already exists.
func ImportLegacyCache(db *gorm.DB, r io.Reader, dryRun bool) (ImportReport, error) {
	var raw map[string][]legacyRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return ImportReport{}, fmt.Errorf("decode legacy cache: %w", err)
	}

	report := ImportReport{Keys: len(raw)}
	err := db.Transaction(func(tx *gorm.DB) error {
		for name, entries := range raw {
			key := models.CacheKey(name)
			records := make([]models.EditionRecord, 0, len(entries))
			for _, e := range entries {
				records = append(records, e.toRecord(name))
			}
			records = models.DedupeEditions(records)
			if key == "" || len(records) == 0 {
				report.Skipped++
				continue
			}

			var existing int64
			if err := tx.Model(&models.CachedEditionSet{}).Where("name_key = ?", key).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				report.Skipped++
				continue
			}

			report.Imported++
			if dryRun {
				continue
			}
			row := models.CachedEditionSet{
				NameKey:   key,
				Source:    models.PriceSource("legacy"),
				Records:   records,
				FetchedAt: time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, fmt.Errorf("import legacy cache: %w", err)
	}
	return report, nil
}

func (e legacyRecord) toRecord(fallbackName string) models.EditionRecord {
	name := firstNonEmpty(e.Name, e.Nombre, fallbackName)
	price := coercePrice(e.Price)
	if price == 0 {
		price = coercePrice(e.Precio)
	}
	return models.EditionRecord{
		CardName:    name,
		EditionName: firstNonEmpty(e.EditionName, e.Edicion),
		PriceUSD:    price,
		ImageURL:    e.ImageURL,
	}
}

// coercePrice accepts JSON numbers or numeric strings; anything else is 0
func coercePrice(v any) float64 {
	var d decimal.Decimal
	switch p := v.(type) {
	case float64:
		d = decimal.NewFromFloat(p)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		d = parsed
	default:
		return 0
	}
	if d.IsNegative() {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

func parseLegacyTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range legacyTimeFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
