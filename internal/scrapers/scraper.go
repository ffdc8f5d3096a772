package scrapers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
)

// Scraper produces raw property records for one listing source. Adapters must
// honor the context, bound every external request with a timeout, and return
// whatever partial results they gathered instead of aborting the batch.
type Scraper interface {
	Name() string
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.RawProperty, error)
}

// AdapterError marks a failure of a whole adapter run. The orchestrator
// downgrades it to zero results from that adapter.
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Settings bound every fetch an adapter performs.
type Settings struct {
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

// Fetcher is the shared HTTP layer for network adapters: per-request timeout
// and a fixed-backoff retry with a small attempt ceiling.
type Fetcher struct {
	client   *http.Client
	settings Settings
	logger   *logrus.Logger
}

func NewFetcher(settings Settings, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 3
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = 30 * time.Second
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = 2 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: settings.RequestTimeout,
		},
		settings: settings,
		logger:   logger,
	}
}

// Fetch retrieves a URL, retrying transient failures up to the attempt
// ceiling with a fixed delay between attempts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= f.settings.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.settings.RetryDelay):
			}
		}

		body, err := f.fetchOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.WithError(err).WithFields(logrus.Fields{
			"url":     rawURL,
			"attempt": attempt,
		}).Warn("Fetch attempt failed")
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", rawURL, f.settings.MaxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ListingID derives the stable record id for a listing: the same source and
// URL always hash to the same id across repeated fetches.
func ListingID(source, listingURL string) string {
	sum := md5.Sum([]byte(source + "-" + listingURL))
	return hex.EncodeToString(sum[:])
}
