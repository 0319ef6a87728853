package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/api"
	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/database"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

const notifierTimeout = 10 * time.Second

// App aggregates configuration and the shared services behind the CLI
// commands and the HTTP server.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	DB        *gorm.DB
	History   *services.HistoryStore
	Cache     *services.EditionCache
	Resolver  *services.Resolver
	Watchlist *services.Watchlist
	Tracker   *services.Tracker
}

// New opens the database and wires every service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	zlog.Logger = logger

	a := &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}

	db, err := database.Open(cfg.Database.Path, cfg.Database.LogLevel)
	if err != nil {
		return nil, err
	}
	a.DB = db

	a.History = services.NewHistoryStore(db, logger)
	a.Cache, err = services.NewEditionCache(db, cfg.Cache.MemoryEntries, logger)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("edition cache: %w", err)
	}
	a.Resolver = services.NewResolver(db, a.newAdapters(logger), a.History, a.Cache, cfg.Resolver, logger)

	a.Watchlist = services.NewWatchlist(db, logger)
	if err := a.Watchlist.Seed(ctx, cfg.Tracker.DefaultCards); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("seed watchlist: %w", err)
	}
	a.Tracker = services.NewTracker(a.Resolver, a.Watchlist, a.newNotifier(logger), cfg.Tracker.Interval, logger)

	return a, nil
}

// newAdapters builds the provider chain: Scryfall first, JustTCG as backup
func (a *App) newAdapters(logger zerolog.Logger) []services.SourceAdapter {
	adapters := []services.SourceAdapter{services.NewScryfallService(a.Config.Scryfall, logger)}

	switch {
	case !a.Config.JustTCG.Enabled:
		a.Logger.Info().Msg("justtcg disabled; scryfall is the only live source")
	case a.Config.JustTCG.APIKey == "":
		a.Logger.Warn().Msg("justtcg.api_key not configured; scryfall is the only live source")
	default:
		adapters = append(adapters, services.NewJustTCGService(a.Config.JustTCG, logger))
	}
	return adapters
}

func (a *App) newNotifier(logger zerolog.Logger) services.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return services.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, notifierTimeout, logger)
	}
	return services.NewLogNotifier(logger)
}

// Serve runs the HTTP API, plus the tracker when enabled, until ctx is done
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Tracker.Enabled {
		if err := a.Tracker.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := a.Tracker.Stop(); err != nil && !errors.Is(err, services.ErrTrackerNotRunning) {
				a.Logger.Warn().Err(err).Msg("tracker stop")
			}
		}()
	}

	router := api.SetupRouter(ctx, api.Services{
		Resolver:  a.Resolver,
		History:   a.History,
		Watchlist: a.Watchlist,
		Tracker:   a.Tracker,
	}, a.Config.Server.CORSOrigins, a.Logger)

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("port", a.Config.Server.Port).Strs("adapters", a.Resolver.AdapterNames()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down server")

	// Give outstanding requests a deadline to complete
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Logger.Info().Msg("server exited")
	return nil
}

// Close releases the database
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return database.Close(a.DB)
}
