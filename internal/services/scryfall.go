package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/metrics"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

const (
	scryfallAdapterName     = "scryfall"
	scryfallDefaultTimeout  = 10 * time.Second
	scryfallDefaultMaxPages = 3
)

// ScryfallService is the primary SourceAdapter. A fuzzy named lookup finds the
// card, then its prints search is walked to fold in every priced printing.
type ScryfallService struct {
	client    *http.Client
	baseURL   string
	userAgent string
	maxPages  int
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// NewScryfallService builds the adapter. Scryfall asks for at most ~10 req/s.
func NewScryfallService(cfg config.ScryfallConfig, logger zerolog.Logger) *ScryfallService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = scryfallDefaultTimeout
	}
	maxPages := cfg.MaxPrintPages
	if maxPages <= 0 {
		maxPages = scryfallDefaultMaxPages
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &ScryfallService{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		maxPages:  maxPages,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With().Str("component", "scryfall").Logger(),
	}
}

type scryfallSearchResponse struct {
	Data     []scryfallCard `json:"data"`
	HasMore  bool           `json:"has_more"`
	NextPage string         `json:"next_page"`
}

type scryfallCard struct {
	ImageURIs       *scryfallImages `json:"image_uris"`
	CardFaces       []scryfallFace  `json:"card_faces"`
	Prices          scryfallPrices  `json:"prices"`
	Name            string          `json:"name"`
	SetName         string          `json:"set_name"`
	Set             string          `json:"set"`
	PrintsSearchURI string          `json:"prints_search_uri"`
}

type scryfallImages struct {
	Small  string `json:"small"`
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

type scryfallFace struct {
	ImageURIs *scryfallImages `json:"image_uris"`
}

type scryfallPrices struct {
	USD     *string `json:"usd"`
	USDFoil *string `json:"usd_foil"`
}

func (s *ScryfallService) Name() string { return scryfallAdapterName }

// FetchEditions returns the named card's edition list. The fuzzy hit is always
// included, even without a price; other printings only when priced. Foil
// prices become their own "<set> Foil" edition.
func (s *ScryfallService) FetchEditions(ctx context.Context, cardName string) ([]models.EditionRecord, error) {
	start := time.Now()
	defer func() {
		metrics.AdapterLatency.WithLabelValues(scryfallAdapterName).Observe(time.Since(start).Seconds())
	}()

	query := strings.TrimSpace(cardName)
	if query == "" {
		return nil, adapterErr(scryfallAdapterName, cardName, ErrCardNotFound)
	}

	params := url.Values{}
	params.Set("fuzzy", query)
	reqURL := fmt.Sprintf("%s/cards/named?%s", s.baseURL, params.Encode())

	var hit scryfallCard
	if err := s.getJSON(ctx, reqURL, &hit); err != nil {
		metrics.AdapterRequestsTotal.WithLabelValues(scryfallAdapterName, "failed").Inc()
		return nil, adapterErr(scryfallAdapterName, query, err)
	}
	if hit.Name == "" {
		metrics.AdapterRequestsTotal.WithLabelValues(scryfallAdapterName, "failed").Inc()
		return nil, adapterErr(scryfallAdapterName, query, fmt.Errorf("%w: card without a name", ErrMalformedPayload))
	}

	records := s.convertToRecords(hit, true)

	if hit.PrintsSearchURI != "" {
		prints, err := s.fetchPrints(ctx, hit.PrintsSearchURI)
		if err != nil {
			// The fuzzy hit is still a valid answer on its own
			s.logger.Warn().Err(err).Str("card", hit.Name).Msg("failed to fetch printings")
		}
		for _, p := range prints {
			records = append(records, s.convertToRecords(p, false)...)
		}
	}

	records = DedupeEditions(records)
	metrics.AdapterRequestsTotal.WithLabelValues(scryfallAdapterName, "ok").Inc()
	return records, nil
}

// fetchPrints walks the prints search pages, stopping at maxPages
func (s *ScryfallService) fetchPrints(ctx context.Context, printsURI string) ([]scryfallCard, error) {
	var cards []scryfallCard
	next := printsURI
	for page := 0; next != "" && page < s.maxPages; page++ {
		var resp scryfallSearchResponse
		if err := s.getJSON(ctx, next, &resp); err != nil {
			if errors.Is(err, ErrCardNotFound) {
				return cards, nil
			}
			return cards, err
		}
		cards = append(cards, resp.Data...)
		next = ""
		if resp.HasMore {
			next = resp.NextPage
		}
	}
	return cards, nil
}

func (s *ScryfallService) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query scryfall: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrCardNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: scryfall API returned status %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func (s *ScryfallService) convertToRecords(sc scryfallCard, keepUnpriced bool) []models.EditionRecord {
	var imageURL string
	if sc.ImageURIs != nil {
		imageURL = sc.ImageURIs.Normal
	} else if len(sc.CardFaces) > 0 && sc.CardFaces[0].ImageURIs != nil {
		imageURL = sc.CardFaces[0].ImageURIs.Normal
	}

	editionName := sc.SetName
	if editionName == "" {
		editionName = strings.ToUpper(sc.Set)
	}

	var records []models.EditionRecord
	priceUSD := parsePrice(sc.Prices.USD)
	if priceUSD > 0 || keepUnpriced {
		records = append(records, models.EditionRecord{
			CardName:    sc.Name,
			EditionName: editionName,
			PriceUSD:    priceUSD,
			ImageURL:    imageURL,
		})
	}
	if foil := parsePrice(sc.Prices.USDFoil); foil > 0 {
		records = append(records, models.EditionRecord{
			CardName:    sc.Name,
			EditionName: editionName + " Foil",
			PriceUSD:    foil,
			ImageURL:    imageURL,
		})
	}
	return records
}

// parsePrice coerces a provider price string to a non-negative dollar amount.
// Missing, unparseable or negative values are 0.
func parsePrice(raw *string) float64 {
	if raw == nil {
		return 0
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || d.IsNegative() {
		return 0
	}
	return d.Round(2).InexactFloat64()
}
