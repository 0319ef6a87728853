package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/metrics"
	"github.com/codyseavey/mtg-value-bot/internal/models"
)

const (
	justTCGAdapterName    = "justtcg"
	justTCGBaseURL        = "https://api.justtcg.com/v1"
	justTCGDefaultTimeout = 10 * time.Second
	justTCGGameMTG        = "magic-the-gathering"
)

// PriceCondition is a normalized card condition grade
type PriceCondition string

const (
	PriceConditionNM  PriceCondition = "NM"
	PriceConditionLP  PriceCondition = "LP"
	PriceConditionMP  PriceCondition = "MP"
	PriceConditionHP  PriceCondition = "HP"
	PriceConditionDMG PriceCondition = "DMG"
)

// conditionRank orders conditions from best to worst for price fallback
var conditionRank = map[PriceCondition]int{
	PriceConditionNM:  0,
	PriceConditionLP:  1,
	PriceConditionMP:  2,
	PriceConditionHP:  3,
	PriceConditionDMG: 4,
}

// JustTCGService is the secondary SourceAdapter, used when Scryfall fails
type JustTCGService struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	dailyLimit int
	logger     zerolog.Logger

	// Rate limiting
	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

type justTCGSearchResponse struct {
	Data  []justTCGCard `json:"data"`
	Error string        `json:"error,omitempty"`
}

type justTCGCard struct {
	Name     string           `json:"name"`
	Set      string           `json:"set"`
	SetName  string           `json:"set_name"`
	ImageURL string           `json:"image_url"`
	Variants []justTCGVariant `json:"variants"`
}

type justTCGVariant struct {
	Condition string   `json:"condition"` // "Near Mint", "Lightly Played", ...
	Printing  string   `json:"printing"`  // "Normal", "Foil"
	Price     *float64 `json:"price"`
}

// NewJustTCGService creates a new JustTCG API service
func NewJustTCGService(cfg config.JustTCGConfig, logger zerolog.Logger) *JustTCGService {
	dailyLimit := cfg.DailyLimit
	if dailyLimit <= 0 {
		dailyLimit = 100 // Default free tier limit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = justTCGDefaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = justTCGBaseURL
	}

	return &JustTCGService{
		client: &http.Client{
			Timeout: timeout,
		},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		dailyLimit: dailyLimit,
		logger:     logger.With().Str("component", "justtcg").Logger(),
	}
}

func (s *JustTCGService) Name() string { return justTCGAdapterName }

// checkDailyLimit reserves one request from today's quota.
// Returns false once the quota is spent.
func (s *JustTCGService) checkDailyLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Reset counter if new day
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}

	s.requestsToday++
	return true
}

// GetRequestsRemaining returns the number of requests remaining today
func (s *JustTCGService) GetRequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if s.lastRequestDay.Before(today) {
		return s.dailyLimit
	}

	remaining := s.dailyLimit - s.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetDailyLimit returns the configured daily limit
func (s *JustTCGService) GetDailyLimit() int {
	return s.dailyLimit
}

// GetResetTime returns the next local midnight, when the daily quota resets
func (s *JustTCGService) GetResetTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// FetchEditions searches JustTCG and returns one record per set, plus a
// "<set> Foil" record when a foil printing is priced.
func (s *JustTCGService) FetchEditions(ctx context.Context, cardName string) ([]models.EditionRecord, error) {
	start := time.Now()
	defer func() {
		metrics.AdapterLatency.WithLabelValues(justTCGAdapterName).Observe(time.Since(start).Seconds())
	}()

	query := strings.TrimSpace(cardName)
	records, err := s.fetch(ctx, query)

	metrics.JustTCGQuotaRemaining.Set(float64(s.GetRequestsRemaining()))
	metrics.JustTCGQuotaLimit.Set(float64(s.dailyLimit))

	if err != nil {
		metrics.AdapterRequestsTotal.WithLabelValues(justTCGAdapterName, "failed").Inc()
		return nil, adapterErr(justTCGAdapterName, query, err)
	}
	metrics.AdapterRequestsTotal.WithLabelValues(justTCGAdapterName, "ok").Inc()
	return records, nil
}

func (s *JustTCGService) fetch(ctx context.Context, query string) ([]models.EditionRecord, error) {
	if query == "" {
		return nil, ErrCardNotFound
	}
	if !s.checkDailyLimit() {
		return nil, fmt.Errorf("%w: JustTCG daily limit of %d reached", ErrRateLimited, s.dailyLimit)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("game", justTCGGameMTG)
	reqURL := fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCardNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: JustTCG API returned status %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var searchResp justTCGSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if searchResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamStatus, searchResp.Error)
	}

	cards := matchingCards(searchResp.Data, query)
	if len(cards) == 0 {
		return nil, ErrCardNotFound
	}

	var records []models.EditionRecord
	for _, c := range cards {
		records = append(records, s.convertToRecords(c)...)
	}
	records = DedupeEditions(records)

	if len(records) == 1 && !records[0].HasPrice() {
		return nil, ErrNoPrice
	}
	return records, nil
}

// matchingCards keeps exact name matches when the search returned any,
// otherwise every result
func matchingCards(cards []justTCGCard, query string) []justTCGCard {
	var exact []justTCGCard
	for _, c := range cards {
		if strings.EqualFold(extractBaseName(c.Name), query) {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return cards
}

func (s *JustTCGService) convertToRecords(c justTCGCard) []models.EditionRecord {
	name := extractBaseName(c.Name)
	edition := strings.TrimSpace(c.SetName)
	if edition == "" {
		edition = strings.ToUpper(c.Set)
	}

	normal, foil := bestVariantPrices(c.Variants)
	records := []models.EditionRecord{{
		CardName:    name,
		EditionName: edition,
		PriceUSD:    normal,
		ImageURL:    c.ImageURL,
	}}
	if foil > 0 {
		records = append(records, models.EditionRecord{
			CardName:    name,
			EditionName: edition + " Foil",
			PriceUSD:    foil,
			ImageURL:    c.ImageURL,
		})
	}
	return records
}

// bestVariantPrices returns the best-condition positive price for the normal
// and foil printings
func bestVariantPrices(variants []justTCGVariant) (normal, foil float64) {
	normalRank, foilRank := len(conditionRank), len(conditionRank)
	for _, v := range variants {
		condition := mapJustTCGCondition(v.Condition)
		if condition == "" || v.Price == nil {
			continue
		}
		price := decimal.NewFromFloat(*v.Price)
		if !price.IsPositive() {
			continue
		}
		rank := conditionRank[condition]
		amount := price.Round(2).InexactFloat64()

		if strings.Contains(strings.ToLower(v.Printing), "foil") {
			if rank < foilRank {
				foil, foilRank = amount, rank
			}
			continue
		}
		if rank < normalRank {
			normal, normalRank = amount, rank
		}
	}
	return normal, foil
}

// extractBaseName strips a trailing parenthesized qualifier, e.g.
// "Black Knight (Retro Frame)" -> "Black Knight"
func extractBaseName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ")") {
		return name
	}
	if idx := strings.LastIndex(name, " ("); idx > 0 {
		return strings.TrimSpace(name[:idx])
	}
	return name
}

// mapJustTCGCondition maps JustTCG condition strings to our PriceCondition type
func mapJustTCGCondition(condition string) PriceCondition {
	switch strings.ToUpper(strings.TrimSpace(condition)) {
	case "NM", "NEAR MINT":
		return PriceConditionNM
	case "LP", "LIGHTLY PLAYED":
		return PriceConditionLP
	case "MP", "MODERATELY PLAYED":
		return PriceConditionMP
	case "HP", "HEAVILY PLAYED":
		return PriceConditionHP
	case "DMG", "DAMAGED":
		return PriceConditionDMG
	default:
		return ""
	}
}
