package api

import (
	"immoradar/internal/database"
	"immoradar/internal/queue"
	"immoradar/internal/scraping"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(router *gin.Engine, db *database.Database, manager *scraping.ScraperManager, ingestQueue *queue.IngestQueue, logger *logrus.Logger) {
	handler := NewHandler(db, manager, ingestQueue, logger)

	router.Use(cors.Default())

	api := router.Group("/api")
	{
		api.POST("/search", handler.Search)
		api.GET("/properties", handler.GetProperties)
		api.GET("/stats", handler.GetStats)
		api.POST("/properties/:id/status", handler.SetStatus)
		api.POST("/properties/:id/favorite", handler.SetFavorite)
		api.GET("/properties/:id/history", handler.GetHistory)
		api.GET("/zones", handler.GetZones)
		api.POST("/scrape/:name", handler.ScrapeOne)
		api.POST("/reload", handler.Reload)
	}
}
