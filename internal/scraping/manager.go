package scraping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"immoradar/config"
	"immoradar/internal/models"
	"immoradar/internal/normalizer"
	"immoradar/internal/scrapers"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScraperManager fans a search out to all enabled adapters over a bounded
// worker pool and collects normalized, validated records as adapters finish.
// One adapter failing never cancels its siblings.
type ScraperManager struct {
	logger *logrus.Logger
	cfg    *config.Config

	mu       sync.RWMutex
	scrapers map[string]scrapers.Scraper
}

// adapterResult carries one adapter's outcome back to the drain loop.
type adapterResult struct {
	name string
	raws []models.RawProperty
	err  error
}

// NewScraperManager builds the manager and its initial adapter registry from
// the configuration's enabled set.
func NewScraperManager(cfg *config.Config, logger *logrus.Logger) *ScraperManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	m := &ScraperManager{
		logger: logger,
		cfg:    cfg,
	}
	m.Reload()
	return m
}

// Reload rebuilds the adapter registry deterministically from the current
// configuration. Safe to call while scrapes are running; in-flight runs keep
// the registry snapshot they started with.
func (m *ScraperManager) Reload() {
	settings := scrapers.Settings{
		RequestTimeout: time.Duration(m.cfg.Scrapers.RequestTimeout) * time.Second,
		MaxAttempts:    m.cfg.Scrapers.MaxAttempts,
		RetryDelay:     time.Duration(m.cfg.Scrapers.RetryDelay) * time.Second,
	}
	fetcher := scrapers.NewFetcher(settings, m.logger)

	registry := make(map[string]scrapers.Scraper)
	if m.cfg.Scrapers.SyntheticEnabled {
		registry[scrapers.SyntheticName] = scrapers.NewSyntheticScraper(m.logger, time.Now().UnixNano())
	}
	if m.cfg.Scrapers.OpenDataEnabled {
		registry[scrapers.OpenDataName] = scrapers.NewOpenDataScraper(fetcher, m.logger)
	}
	if m.cfg.Scrapers.BienIciEnabled {
		registry[scrapers.BienIciName] = scrapers.NewBienIciScraper(fetcher, m.logger)
	}

	m.mu.Lock()
	m.scrapers = registry
	m.mu.Unlock()

	m.logger.WithField("adapters", len(registry)).Info("Scraper registry rebuilt")
}

// Register adds or replaces an adapter by name. Used by tests and by callers
// wiring custom sources.
func (m *ScraperManager) Register(s scrapers.Scraper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapers[s.Name()] = s
}

// ScraperNames returns the names of the currently enabled adapters.
func (m *ScraperManager) ScraperNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scrapers))
	for name := range m.scrapers {
		names = append(names, name)
	}
	return names
}

// ScrapeAll runs every enabled adapter concurrently with the same criteria
// and returns the flat list of validated records. When the context expires
// the records collected so far are returned along with the context error.
func (m *ScraperManager) ScrapeAll(ctx context.Context, criteria models.SearchCriteria) ([]models.Property, error) {
	m.mu.RLock()
	registry := make(map[string]scrapers.Scraper, len(m.scrapers))
	for name, s := range m.scrapers {
		registry[name] = s
	}
	m.mu.RUnlock()

	runID := uuid.NewString()
	log := m.logger.WithField("run_id", runID)
	log.WithField("adapters", len(registry)).Info("Starting scrape run")

	jobs := make(chan scrapers.Scraper, len(registry))
	results := make(chan adapterResult, len(registry))

	workerCount := m.cfg.Scrapers.WorkerCount
	if workerCount <= 0 {
		workerCount = 3
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				results <- m.runAdapter(ctx, s, criteria)
			}
		}()
	}

	for _, s := range registry {
		jobs <- s
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var validated []models.Property
	var failures int
	pending := len(registry)

drain:
	for pending > 0 {
		select {
		case <-ctx.Done():
			log.WithFields(logrus.Fields{
				"still_running": pending,
				"collected":     len(validated),
			}).Warn("Scrape deadline reached, returning partial results")
			return validated, ctx.Err()
		case res, ok := <-results:
			if !ok {
				break drain
			}
			pending--
			if res.err != nil {
				failures++
				log.WithError(res.err).WithField("adapter", res.name).Error("Adapter failed")
				continue
			}
			records := m.ingestRaw(log, res.name, res.raws)
			validated = append(validated, records...)
			log.WithFields(logrus.Fields{
				"adapter": res.name,
				"records": len(records),
			}).Info("Adapter completed")
		}
	}

	log.WithFields(logrus.Fields{
		"records":  len(validated),
		"failures": failures,
	}).Info("Scrape run completed")
	return validated, nil
}

// ScrapeOne runs a single adapter by name for targeted re-runs.
func (m *ScraperManager) ScrapeOne(ctx context.Context, name string, criteria models.SearchCriteria) ([]models.Property, error) {
	m.mu.RLock()
	s, ok := m.scrapers[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scraper %q not found", name)
	}

	res := m.runAdapter(ctx, s, criteria)
	if res.err != nil {
		return nil, res.err
	}
	return m.ingestRaw(m.logger.WithField("adapter", name), name, res.raws), nil
}

// runAdapter executes one adapter, converting panics and errors into an
// adapterResult the drain loop can downgrade.
func (m *ScraperManager) runAdapter(ctx context.Context, s scrapers.Scraper, criteria models.SearchCriteria) (res adapterResult) {
	res.name = s.Name()
	defer func() {
		if r := recover(); r != nil {
			res.err = &scrapers.AdapterError{Adapter: res.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raws, err := s.Search(ctx, criteria)
	res.raws = raws
	res.err = err
	return res
}

// ingestRaw normalizes and validates one adapter's raw output. Per-record
// errors drop the record and are logged; they never fail the batch.
func (m *ScraperManager) ingestRaw(log *logrus.Entry, adapter string, raws []models.RawProperty) []models.Property {
	records := make([]models.Property, 0, len(raws))
	var dropped int
	for _, raw := range raws {
		p, err := normalizer.Normalize(raw)
		if err != nil {
			dropped++
			log.WithError(err).WithField("url", raw.URL).Debug("Dropped record during normalization")
			continue
		}
		if err := normalizer.Validate(p); err != nil {
			dropped++
			log.WithError(err).WithField("url", p.URL).Debug("Dropped invalid record")
			continue
		}
		records = append(records, p)
	}
	if dropped > 0 {
		log.WithFields(logrus.Fields{
			"adapter": adapter,
			"dropped": dropped,
		}).Warn("Dropped records from adapter output")
	}
	return records
}
