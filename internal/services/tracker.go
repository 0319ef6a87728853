package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codyseavey/mtg-value-bot/internal/metrics"
)

const defaultTrackerInterval = 24 * time.Hour

var (
	ErrTrackerRunning    = errors.New("tracker is already running")
	ErrTrackerNotRunning = errors.New("tracker is not running")
)

// TrackerRun summarizes one pass over the watchlist
type TrackerRun struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Checked   int           `json:"checked"`
	Changed   int           `json:"changed"`
	Failed    int           `json:"failed"`
}

type TrackerStatus struct {
	Running       bool        `json:"running"`
	Interval      string      `json:"interval"`
	NextRunTime   *time.Time  `json:"next_run_time,omitempty"`
	LastRun       *TrackerRun `json:"last_run,omitempty"`
	ChecksToday   int         `json:"checks_today"`
	Notifications int         `json:"notifications_today"`
}

// Tracker re-resolves every watchlist card on an interval and notifies when a
// positive price differs from the one recorded at the previous check.
// All state lives on the Tracker; it can be started and stopped at runtime.
type Tracker struct {
	resolver  *Resolver
	watchlist *Watchlist
	notifier  Notifier
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Stats (reset at midnight)
	lastRun            *TrackerRun
	checksToday        int
	notificationsToday int
	lastStatsDay       time.Time

	// one pass at a time, whether scheduled or manual
	runMu sync.Mutex
}

func NewTracker(resolver *Resolver, watchlist *Watchlist, notifier Notifier, interval time.Duration, logger zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = defaultTrackerInterval
	}
	return &Tracker{
		resolver:  resolver,
		watchlist: watchlist,
		notifier:  notifier,
		interval:  interval,
		logger:    logger.With().Str("component", "tracker").Logger(),
	}
}

// Start launches the background loop. It returns ErrTrackerRunning when the
// loop is already active.
func (t *Tracker) Start(parent context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrackerRunning
	}

	ctx, cancel := context.WithCancel(parent)
	t.running = true
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to finish
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return ErrTrackerNotRunning
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Running reports whether the background loop is active
func (t *Tracker) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func (t *Tracker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t.logger.Info().Dur("interval", t.interval).Msg("tracker started")

	// Run immediately on startup
	if _, err := t.CheckAll(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error().Err(err).Msg("initial tracker pass failed")
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// A Stop followed by a new Start may already own the state
			t.mu.Lock()
			if t.done == done {
				t.running = false
			}
			t.mu.Unlock()
			t.logger.Info().Msg("tracker stopping")
			return
		case <-ticker.C:
			if _, err := t.CheckAll(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error().Err(err).Msg("tracker pass failed")
			}
		}
	}
}

// CheckAll resolves every tracked card once. Individual card failures are
// counted, not returned; only a failure to read the watchlist is an error.
func (t *Tracker) CheckAll(ctx context.Context) (TrackerRun, error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.resetDailyStatsIfNeeded()

	run := TrackerRun{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := t.logger.With().Str("run_id", run.ID).Logger()

	cards, err := t.watchlist.List(ctx)
	if err != nil {
		return run, err
	}

	notified := 0
	for _, card := range cards {
		if ctx.Err() != nil {
			break
		}
		run.Checked++

		resolved, err := t.resolver.Resolve(ctx, card.Name, "")
		if err != nil {
			run.Failed++
			metrics.TrackerChecksTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("card", card.Name).Msg("tracked card check failed")
			continue
		}

		price := card.LastPriceUSD
		changed := resolved.PriceUSD > 0 && resolved.PriceUSD != card.LastPriceUSD
		if resolved.PriceUSD > 0 {
			price = resolved.PriceUSD
		}

		sent := false
		if changed {
			run.Changed++
			metrics.TrackerChecksTotal.WithLabelValues("changed").Inc()
			change := PriceChange{
				Query:         card.Name,
				CardName:      resolved.CardName,
				EditionName:   resolved.EditionName,
				PreviousPrice: card.LastPriceUSD,
				CurrentPrice:  resolved.PriceUSD,
				RSI:           resolved.RSI,
				CheckedAt:     run.StartedAt,
			}
			if err := t.notifier.Notify(ctx, change); err != nil {
				logger.Warn().Err(err).Str("card", card.Name).Msg("notification failed")
			} else {
				sent = true
				notified++
			}
		} else {
			metrics.TrackerChecksTotal.WithLabelValues("unchanged").Inc()
		}

		if err := t.watchlist.RecordCheck(ctx, card.ID, resolved.EditionName, price, sent); err != nil {
			logger.Error().Err(err).Str("card", card.Name).Msg("failed to record tracked card check")
		}
	}

	run.Duration = time.Since(run.StartedAt)
	metrics.TrackerRunDuration.Observe(run.Duration.Seconds())

	t.mu.Lock()
	t.lastRun = &run
	t.checksToday += run.Checked
	t.notificationsToday += notified
	t.mu.Unlock()

	logger.Info().
		Int("checked", run.Checked).
		Int("changed", run.Changed).
		Int("failed", run.Failed).
		Dur("duration", run.Duration).
		Msg("tracker pass complete")
	return run, nil
}

// Status returns the current status
func (t *Tracker) Status() TrackerStatus {
	t.resetDailyStatsIfNeeded()

	t.mu.RLock()
	defer t.mu.RUnlock()

	status := TrackerStatus{
		Running:       t.running,
		Interval:      t.interval.String(),
		ChecksToday:   t.checksToday,
		Notifications: t.notificationsToday,
	}
	if t.lastRun != nil {
		last := *t.lastRun
		status.LastRun = &last
		if t.running {
			next := last.StartedAt.Add(t.interval)
			status.NextRunTime = &next
		}
	}
	return status
}

// resetDailyStatsIfNeeded resets the daily counters at midnight
func (t *Tracker) resetDailyStatsIfNeeded() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if t.lastStatsDay.Before(today) {
		if !t.lastStatsDay.IsZero() {
			t.logger.Info().Int("checks", t.checksToday).Msg("tracker daily stats reset")
		}
		t.checksToday = 0
		t.notificationsToday = 0
		t.lastStatsDay = today
	}
}
