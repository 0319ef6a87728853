package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/codyseavey/mtg-value-bot/internal/api/handlers"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

// Services groups what the HTTP surface calls into
type Services struct {
	Resolver  *services.Resolver
	History   *services.HistoryStore
	Watchlist *services.Watchlist
	Tracker   *services.Tracker
}

// SetupRouter builds the JSON API. baseCtx bounds background work started from
// a request, such as the tracker loop, so it outlives the request itself.
func SetupRouter(baseCtx context.Context, svc Services, corsOrigins []string, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(observe(logger.With().Str("component", "http").Logger()))

	// CORS configuration - allow configured origins or use defaults
	config := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		config.AllowOrigins = corsOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	// Initialize handlers
	cardHandler := handlers.NewCardHandler(svc.Resolver)
	historyHandler := handlers.NewHistoryHandler(svc.History)
	watchlistHandler := handlers.NewWatchlistHandler(svc.Watchlist)
	trackerHandler := handlers.NewTrackerHandler(baseCtx, svc.Tracker)

	// API routes
	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.GET("/resolve", cardHandler.ResolveCard)
			cards.GET("/editions", cardHandler.ListEditions)
		}

		api.GET("/sources/status", cardHandler.GetSourceStatus)

		api.GET("/history", historyHandler.GetHistory)

		watchlist := api.Group("/watchlist")
		{
			watchlist.GET("", watchlistHandler.GetWatchlist)
			watchlist.POST("", watchlistHandler.AddToWatchlist)
			watchlist.DELETE("/:name", watchlistHandler.RemoveFromWatchlist)
		}

		tracker := api.Group("/tracker")
		{
			tracker.GET("/status", trackerHandler.GetStatus)
			tracker.POST("/start", trackerHandler.Start)
			tracker.POST("/stop", trackerHandler.Stop)
			tracker.POST("/run", trackerHandler.RunNow)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"adapters": svc.Resolver.AdapterNames(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
