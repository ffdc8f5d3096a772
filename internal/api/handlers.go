package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"immoradar/config"
	"immoradar/internal/database"
	"immoradar/internal/models"
	"immoradar/internal/queue"
	"immoradar/internal/scraping"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// searchTimeout bounds an interactive search; the orchestrator returns
// whatever it gathered when it expires.
const searchTimeout = 2 * time.Minute

type Handler struct {
	db      *database.Database
	manager *scraping.ScraperManager
	queue   *queue.IngestQueue
	logger  *logrus.Logger
}

type SearchRequest struct {
	PriceMin        float64  `json:"price_min"`
	PriceMax        float64  `json:"price_max"`
	EnergyRatingMax string   `json:"energy_rating_max"`
	Zones           []string `json:"zones"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type FavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

func NewHandler(db *database.Database, manager *scraping.ScraperManager, ingestQueue *queue.IngestQueue, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Handler{
		db:      db,
		manager: manager,
		queue:   ingestQueue,
		logger:  logger,
	}
}

// Search fans the criteria out to all enabled adapters, queues the validated
// records for persistence and returns them to the caller.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	criteria := models.SearchCriteria{
		PriceMin:        req.PriceMin,
		PriceMax:        req.PriceMax,
		EnergyRatingMax: req.EnergyRatingMax,
		Zones:           req.Zones,
	}

	records, err := h.manager.ScrapeAll(ctx, criteria)
	if err != nil {
		h.logger.WithError(err).Warn("Search returned partial results")
	}

	if len(records) > 0 {
		batch := make([]*models.Property, len(records))
		for i := range records {
			batch[i] = &records[i]
		}
		if err := h.queue.Push(batch); err != nil {
			h.logger.WithError(err).Error("Failed to queue search results for persistence")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(records),
		"properties": records,
	})
}

// ScrapeOne triggers a targeted re-run of a single adapter.
func (h *Handler) ScrapeOne(c *gin.Context) {
	name := c.Param("name")

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	records, err := h.manager.ScrapeOne(ctx, name, models.SearchCriteria{
		PriceMin:        req.PriceMin,
		PriceMax:        req.PriceMax,
		EnergyRatingMax: req.EnergyRatingMax,
		Zones:           req.Zones,
	})
	if err != nil {
		h.logger.WithError(err).WithField("adapter", name).Error("Targeted scrape failed")
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if len(records) > 0 {
		batch := make([]*models.Property, len(records))
		for i := range records {
			batch[i] = &records[i]
		}
		if err := h.queue.Push(batch); err != nil {
			h.logger.WithError(err).Error("Failed to queue scrape results for persistence")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(records),
		"properties": records,
	})
}

// GetZones lists the zones searches can target.
func (h *Handler) GetZones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"zones": config.SupportedZones})
}

// Reload rebuilds the adapter registry from current configuration.
func (h *Handler) Reload(c *gin.Context) {
	h.manager.Reload()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"adapters": h.manager.ScraperNames(),
	})
}

func parseFilter(c *gin.Context) models.PropertyFilter {
	var filter models.PropertyFilter

	if v := c.Query("price_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMin = &f
		}
	}
	if v := c.Query("price_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMax = &f
		}
	}
	filter.EnergyRatingMax = c.Query("energy_rating_max")
	filter.Location = c.Query("location")
	filter.Status = c.Query("status")
	filter.FavoritesOnly = c.Query("favorites") == "true"
	filter.OrderBy = c.Query("order_by")

	return filter
}

// GetProperties returns stored records matching the query filters.
func (h *Handler) GetProperties(c *gin.Context) {
	properties, err := h.db.QueryProperties(parseFilter(c))
	if err != nil {
		h.logger.WithError(err).Error("Failed to query properties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(properties),
		"properties": properties,
	})
}

// GetStats aggregates the store over the same filter shape as GetProperties.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.db.GetStatistics(parseFilter(c))
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SetStatus changes a record's workflow status.
func (h *Handler) SetStatus(c *gin.Context) {
	id := c.Param("id")

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if !models.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ok, err := h.db.SetStatus(id, req.Status, req.Notes)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "property not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetFavorite flags or unflags a record.
func (h *Handler) SetFavorite(c *gin.Context) {
	id := c.Param("id")

	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ok, err := h.db.MarkFavorite(id, req.Favorite)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update favorite flag")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "property not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetHistory returns a record's status audit trail in chronological order.
func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.db.GetHistory(c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}
