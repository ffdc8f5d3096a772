package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		Port string `env:"SERVER_PORT" envDefault:"5250"`
	}

	// Database configuration
	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/immoradar.db"`

		// Records in a terminal status older than this many days are
		// eligible for the retention purge.
		RetentionDays int `env:"DATABASE_RETENTION_DAYS" envDefault:"90"`
	}

	// Scrapers configuration
	Scrapers struct {
		SyntheticEnabled bool `env:"SCRAPER_SYNTHETIC_ENABLED" envDefault:"true"`
		OpenDataEnabled  bool `env:"SCRAPER_OPENDATA_ENABLED" envDefault:"true"`
		BienIciEnabled   bool `env:"SCRAPER_BIENICI_ENABLED" envDefault:"false"`

		// Per-request timeout in seconds for adapter HTTP calls
		RequestTimeout int `env:"SCRAPER_REQUEST_TIMEOUT" envDefault:"30"`

		// Number of attempts for a single fetch before giving up on it
		MaxAttempts int `env:"SCRAPER_MAX_ATTEMPTS" envDefault:"3"`

		// Fixed delay between fetch attempts in seconds
		RetryDelay int `env:"SCRAPER_RETRY_DELAY" envDefault:"2"`

		// Size of the worker pool running adapters in parallel
		WorkerCount int `env:"SCRAPER_WORKER_COUNT" envDefault:"3"`
	}

	// Ingestion pipeline configuration
	Ingestion struct {
		// Number of batches the queue buffers before rejecting pushes
		QueueSize int `env:"INGEST_QUEUE_SIZE" envDefault:"32"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"INGEST_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"INGEST_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"INGEST_RETRY_DELAY" envDefault:"5"`
	}

	// Email notification configuration
	Email struct {
		SMTPHost  string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
		SMTPPort  int    `env:"SMTP_PORT" envDefault:"587"`
		From      string `env:"EMAIL_FROM" envDefault:"immoradar@noreply.com"`
		Recipient string `env:"EMAIL_RECIPIENT"`
		Password  string `env:"EMAIL_PASSWORD"`

		// Maximum number of records included in one alert message
		MaxProperties int `env:"EMAIL_MAX_PROPERTIES" envDefault:"20"`
	}

	// Default search criteria used by the scheduler when no explicit
	// criteria are supplied by a caller
	Search struct {
		PriceMin        float64  `env:"SEARCH_PRICE_MIN" envDefault:"200000"`
		PriceMax        float64  `env:"SEARCH_PRICE_MAX" envDefault:"500000"`
		EnergyRatingMax string   `env:"SEARCH_ENERGY_RATING_MAX" envDefault:"D"`
		Zones           []string `env:"SEARCH_ZONES" envSeparator:"," envDefault:"Paris,Hauts-de-Seine,Val-de-Marne"`
	}

	// Scheduler configuration
	Scheduler struct {
		// Hours between scheduled scrape runs
		IntervalHours int `env:"SCHEDULER_INTERVAL_HOURS" envDefault:"2"`

		// Hour of day (0-23) at which the daily report is sent
		ReportHour int `env:"SCHEDULER_REPORT_HOUR" envDefault:"9"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
