package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/mtg-value-bot/internal/services"
)

type CardHandler struct {
	resolver *services.Resolver
}

func NewCardHandler(resolver *services.Resolver) *CardHandler {
	return &CardHandler{
		resolver: resolver,
	}
}

// ResolveCard prices one edition of a card and returns its history and indicators
func (h *CardHandler) ResolveCard(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'name' is required"})
		return
	}

	card, err := h.resolver.Resolve(c.Request.Context(), name, c.Query("edition"))
	if err != nil {
		respondResolveError(c, name, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

// ListEditions returns every known edition of a card
func (h *CardHandler) ListEditions(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'name' is required"})
		return
	}

	result, err := h.resolver.ListEditions(c.Request.Context(), name)
	if err != nil {
		respondResolveError(c, name, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSourceStatus returns the adapter chain and remaining provider quota
func (h *CardHandler) GetSourceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources": h.resolver.Sources(),
	})
}

func respondResolveError(c *gin.Context, query string, err error) {
	var resErr *services.ResolutionError
	if errors.As(err, &resErr) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "card not found in any price source",
			"query": query,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
