package scheduler

import (
	"context"
	"sync"
	"time"

	"immoradar/config"
	"immoradar/internal/database"
	"immoradar/internal/models"
	"immoradar/internal/notifier"
	"immoradar/internal/queue"
	"immoradar/internal/scraping"

	"github.com/sirupsen/logrus"
)

// scrapeRunTimeout bounds one full scheduled scrape run.
const scrapeRunTimeout = 10 * time.Minute

// Scheduler triggers periodic scrape runs, the daily report and the
// retention purge. Jobs run sequentially; notification is always a
// post-step, never inline with ingestion.
type Scheduler struct {
	manager  *scraping.ScraperManager
	db       *database.Database
	queue    *queue.IngestQueue
	notifier *notifier.EmailNotifier
	cfg      *config.Config
	logger   *logrus.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex
}

func NewScheduler(
	manager *scraping.ScraperManager,
	db *database.Database,
	ingestQueue *queue.IngestQueue,
	emailNotifier *notifier.EmailNotifier,
	cfg *config.Config,
	logger *logrus.Logger,
) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Scheduler{
		manager:  manager,
		db:       db,
		queue:    ingestQueue,
		notifier: emailNotifier,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduled tasks, including a startup scrape run.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	go func() {
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup scrape job")
		s.runScrapeJob()
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

func (s *Scheduler) executeScheduledJobs(t time.Time) {
	if t.Minute() != 0 {
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	interval := s.cfg.Scheduler.IntervalHours
	if interval <= 0 {
		interval = 2
	}

	if t.Hour()%interval == 0 {
		s.logger.WithField("hour", t.Hour()).Info("Starting scheduled scrape job")
		s.runScrapeJob()
	}

	if t.Hour() == s.cfg.Scheduler.ReportHour {
		s.logger.Info("Sending daily report")
		s.runReportJob()
	}

	if t.Hour() == 0 {
		s.runPurgeJob()
	}
}

// runScrapeJob executes a full scrape with the configured default criteria,
// queues everything for persistence and alerts on records not seen before.
func (s *Scheduler) runScrapeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeRunTimeout)
	defer cancel()

	criteria := models.SearchCriteria{
		PriceMin:        s.cfg.Search.PriceMin,
		PriceMax:        s.cfg.Search.PriceMax,
		EnergyRatingMax: s.cfg.Search.EnergyRatingMax,
		Zones:           s.cfg.Search.Zones,
	}

	records, err := s.manager.ScrapeAll(ctx, criteria)
	if err != nil {
		s.logger.WithError(err).Warn("Scrape run ended early, persisting partial results")
	}
	if len(records) == 0 {
		s.logger.Info("Scrape run produced no records")
		return
	}

	// Figure out which records are unseen before they are queued. This is
	// only an alerting hint; dedup itself stays atomic inside the store.
	var fresh []models.Property
	for _, r := range records {
		exists, err := s.db.Exists(r.URL)
		if err != nil {
			s.logger.WithError(err).Error("Failed to check record existence")
			continue
		}
		if !exists {
			fresh = append(fresh, r)
		}
	}

	batch := make([]*models.Property, len(records))
	for i := range records {
		batch[i] = &records[i]
	}
	if err := s.queue.Push(batch); err != nil {
		s.logger.WithError(err).Error("Failed to queue scraped batch")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"scraped": len(records),
		"new":     len(fresh),
	}).Info("Scrape job completed")

	if len(fresh) > 0 {
		if ok := s.notifier.SendAlert(fresh, criteria); !ok {
			s.logger.Warn("Alert notification was not delivered")
		}
	}
}

func (s *Scheduler) runReportJob() {
	stats, err := s.db.GetStatistics(models.PropertyFilter{})
	if err != nil {
		s.logger.WithError(err).Error("Failed to compute statistics for report")
		return
	}
	recent, err := s.db.GetRecentProperties(24)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load recent properties for report")
		return
	}
	if ok := s.notifier.SendDailyReport(stats, recent); !ok {
		s.logger.Warn("Daily report was not delivered")
	}
}

func (s *Scheduler) runPurgeJob() {
	deleted, err := s.db.PurgeStale(s.cfg.Database.RetentionDays)
	if err != nil {
		s.logger.WithError(err).Error("Retention purge failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Purged stale records")
	}
}
