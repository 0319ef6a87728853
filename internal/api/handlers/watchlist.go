package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/mtg-value-bot/internal/models"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

type WatchlistHandler struct {
	watchlist *services.Watchlist
}

func NewWatchlistHandler(watchlist *services.Watchlist) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: watchlist,
	}
}

func (h *WatchlistHandler) GetWatchlist(c *gin.Context) {
	cards, err := h.watchlist.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cards)
}

// AddToWatchlist tracks a card. An already-tracked name returns 200 with
// changed=false; a new one returns 201.
func (h *WatchlistHandler) AddToWatchlist(c *gin.Context) {
	var req models.AddTrackedCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := h.watchlist.Add(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCardName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if change.Changed {
		status = http.StatusCreated
	}
	c.JSON(status, change)
}

// RemoveFromWatchlist stops tracking a card. Removing an untracked name
// returns 404 with the change message.
func (h *WatchlistHandler) RemoveFromWatchlist(c *gin.Context) {
	change, err := h.watchlist.Remove(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, services.ErrEmptyCardName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !change.Changed {
		c.JSON(http.StatusNotFound, change)
		return
	}
	c.JSON(http.StatusOK, change)
}
