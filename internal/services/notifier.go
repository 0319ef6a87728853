package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/mtg-value-bot/internal/metrics"
)

// PriceChange is what the tracker reports when a tracked card moves
type PriceChange struct {
	Query         string
	CardName      string
	EditionName   string
	PreviousPrice float64
	CurrentPrice  float64
	RSI           *float64
	CheckedAt     time.Time
}

// Notifier delivers tracker notifications
type Notifier interface {
	Notify(ctx context.Context, change PriceChange) error
}

// TelegramNotifier posts through the Telegram Bot API sendMessage method
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify sends one plain-text message
func (n *TelegramNotifier) Notify(ctx context.Context, change PriceChange) error {
	err := n.send(ctx, change)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	metrics.NotificationsTotal.WithLabelValues("telegram", result).Inc()
	return err
}

func (n *TelegramNotifier) send(ctx context.Context, change PriceChange) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderChange(change),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Info().Str("card", change.CardName).
		Str("edition", change.EditionName).
		Float64("price", change.CurrentPrice).
		Msg("notification sent (Telegram)")
	return nil
}

// LogNotifier writes notifications to the log when no chat is configured
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify_log").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, change PriceChange) error {
	n.logger.Info().
		Str("card", change.CardName).
		Str("edition", change.EditionName).
		Float64("previous", change.PreviousPrice).
		Float64("current", change.CurrentPrice).
		Msg("price changed")
	metrics.NotificationsTotal.WithLabelValues("log", "ok").Inc()
	return nil
}

func renderChange(change PriceChange) string {
	current := decimal.NewFromFloat(change.CurrentPrice)
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s (%s)\n", change.CardName, change.EditionName))
	builder.WriteString(fmt.Sprintf("Price: $%s\n", current.StringFixed(2)))
	if change.PreviousPrice > 0 {
		previous := decimal.NewFromFloat(change.PreviousPrice)
		diff := current.Sub(previous)
		pct := diff.Div(previous).Mul(decimal.NewFromInt(100))
		builder.WriteString(fmt.Sprintf("Previous: $%s (%s%%)\n", previous.StringFixed(2), pct.StringFixed(2)))
	}
	if change.RSI != nil {
		builder.WriteString(fmt.Sprintf("RSI: %.2f\n", *change.RSI))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
