package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/mtg-value-bot/internal/models"
	"github.com/codyseavey/mtg-value-bot/internal/services"
)

const maxHistoryLimit = 500

type HistoryHandler struct {
	history *services.HistoryStore
}

func NewHistoryHandler(history *services.HistoryStore) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

// GetHistory searches recorded prices by card/edition substring
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "all")
	if !services.ValidPeriod(period) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be one of week, month, 3month, year, all"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	name := c.Query("name")
	series, err := h.history.Search(c.Request.Context(), name, limit, period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.HistoryResponse{
		Query:  name,
		Period: period,
		Series: series,
	})
}

type TrackerHandler struct {
	baseCtx context.Context
	tracker *services.Tracker
}

// NewTrackerHandler binds tracker control to baseCtx rather than to the
// request that starts it
func NewTrackerHandler(baseCtx context.Context, tracker *services.Tracker) *TrackerHandler {
	return &TrackerHandler{
		baseCtx: baseCtx,
		tracker: tracker,
	}
}

// GetStatus returns scheduler state and the last run summary
func (h *TrackerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Status())
}

func (h *TrackerHandler) Start(c *gin.Context) {
	if err := h.tracker.Start(h.baseCtx); err != nil {
		if errors.Is(err, services.ErrTrackerRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.tracker.Status())
}

func (h *TrackerHandler) Stop(c *gin.Context) {
	if err := h.tracker.Stop(); err != nil {
		if errors.Is(err, services.ErrTrackerNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.tracker.Status())
}

// RunNow checks every tracked card immediately
func (h *TrackerHandler) RunNow(c *gin.Context) {
	run, err := h.tracker.CheckAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run": run,
	})
}
