package main

import (
	"os"
	"path/filepath"

	"immoradar/config"
	"immoradar/internal/api"
	"immoradar/internal/database"
	"immoradar/internal/notifier"
	"immoradar/internal/processor"
	"immoradar/internal/queue"
	"immoradar/internal/scheduler"
	"immoradar/internal/scraping"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load .env before parsing configuration (SMTP credentials live there)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment as-is")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.Database.Path)

	// Initialize the store
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Initializing database schema...")
	if err := db.InitSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize database schema")
	}

	// Second handle over the same file for the batch ingestion path
	gormDB, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to open ingestion database handle")
	}

	// Ingestion pipeline: queue feeding the batch processor
	ingestQueue := queue.NewIngestQueue(cfg.Ingestion.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(gormDB, ingestQueue, cfg, logger)
	batchProcessor.Start()
	defer batchProcessor.Stop()
	ingestQueue.Start()
	defer ingestQueue.Close()

	// Orchestrator with the enabled adapter registry
	manager := scraping.NewScraperManager(cfg, logger)

	// Out-of-band email alerts
	emailNotifier := notifier.NewEmailNotifier(cfg, logger)

	// Periodic scrapes, daily report, retention purge
	sched := scheduler.NewScheduler(manager, db, ingestQueue, emailNotifier, cfg, logger)
	sched.Start()
	defer sched.Stop()

	// HTTP API
	router := gin.Default()
	api.SetupRoutes(router, db, manager, ingestQueue, logger)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
