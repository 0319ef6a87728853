package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/mtg-value-bot/internal/models"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

// Lookup resolves one card and prints price, indicators and forecast
func (a *App) Lookup(ctx context.Context, w io.Writer, name, edition string) error {
	card, err := a.Resolver.Resolve(ctx, name, edition)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n", card.CardName, card.EditionName)
	fmt.Fprintf(w, "Price:    %s\n", formatUSD(card.PriceUSD))
	fmt.Fprintf(w, "Source:   %s\n", card.Source)
	fmt.Fprintf(w, "Editions: %d\n", card.EditionCount)
	fmt.Fprintf(w, "History:  %d observations\n", len(card.HistoryPrices))
	if card.RSI != nil {
		fmt.Fprintf(w, "RSI:      %.2f\n", *card.RSI)
	} else {
		fmt.Fprintln(w, "RSI:      not enough history")
	}
	if len(card.Forecast) > 0 {
		points := make([]string, len(card.Forecast))
		for i, p := range card.Forecast {
			points[i] = formatUSD(p)
		}
		fmt.Fprintf(w, "Forecast: %s\n", strings.Join(points, ", "))
	}
	if card.ImageURL != "" {
		fmt.Fprintf(w, "Image:    %s\n", card.ImageURL)
	}
	return nil
}

// Editions prints every known edition of a card
func (a *App) Editions(ctx context.Context, w io.Writer, name string) error {
	result, err := a.Resolver.ListEditions(ctx, name)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Edition\tPrice\n")
	for _, e := range result.Editions {
		fmt.Fprintf(writer, "%s\t%s\n", e.EditionName, formatUSD(e.PriceUSD))
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d editions from %s\n", result.Total, result.Source)
	return nil
}

// ShowHistory prints recorded prices for every key matching substr
func (a *App) ShowHistory(ctx context.Context, w io.Writer, substr string, limit int, period string) error {
	if !services.ValidPeriod(period) {
		return fmt.Errorf("unknown period %q (week, month, 3month, year, all)", period)
	}
	series, err := a.History.Search(ctx, substr, limit, period)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintln(w, "no history found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range series {
		fmt.Fprintf(writer, "%s\t\t\n", s.Key)
		for _, obs := range s.Observations {
			fmt.Fprintf(writer, "\t%s\t%s\n", obs.ObservedAt.Format(models.HistoryDateFormat), formatUSD(obs.PriceUSD))
		}
	}
	return writer.Flush()
}

// TrackAdd adds a card to the watchlist
func (a *App) TrackAdd(ctx context.Context, w io.Writer, name string) error {
	change, err := a.Watchlist.Add(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, change.Message)
	return nil
}

// TrackRemove removes a card from the watchlist
func (a *App) TrackRemove(ctx context.Context, w io.Writer, name string) error {
	change, err := a.Watchlist.Remove(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, change.Message)
	return nil
}

// TrackList prints the watchlist with the last checked price of each card
func (a *App) TrackList(ctx context.Context, w io.Writer) error {
	cards, err := a.Watchlist.List(ctx)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintln(w, "watchlist is empty")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Card\tEdition\tLast price\tChecked (UTC)")
	for _, c := range cards {
		checked := "never"
		if c.LastCheckedAt != nil {
			checked = c.LastCheckedAt.UTC().Format(time.RFC3339)
		}
		price := "-"
		if c.LastPriceUSD > 0 {
			price = formatUSD(c.LastPriceUSD)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", c.Name, c.LastEdition, price, checked)
	}
	return writer.Flush()
}

// WarmCache fills the Local Cache for names without recording history
func (a *App) WarmCache(ctx context.Context, w io.Writer, names []string) error {
	results := a.Resolver.WarmCache(ctx, names)

	failed := 0
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Card\tSource\tEditions\tError")
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\n", r.Name, r.Source, r.Editions, r.Error)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if failed == len(results) && failed > 0 {
		return fmt.Errorf("no card could be fetched from any source")
	}
	return nil
}

func formatUSD(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}
