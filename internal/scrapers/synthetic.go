package scrapers

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
)

// SyntheticName identifies the synthetic adapter in the registry.
const SyntheticName = "synthetic"

const syntheticBatchSize = 12

var syntheticTitles = []string{
	"Appartement 2 pièces avec balcon",
	"Maison indépendante 4 pièces",
	"Studio rénové proche métro",
	"T3 lumineux Ile-de-France",
	"Penthouse moderne avec vue",
	"Duplex contemporain",
	"Loft spacieux Paris",
	"Villa familiale 5 pièces",
}

var syntheticLocations = []string{
	"Paris 15", "Boulogne", "Vanves", "Neuilly", "Saint-Denis", "Levallois",
}

var syntheticRatings = []string{"A", "B", "C", "D", "E", "F"}

// SyntheticScraper generates randomized records instead of fetching a site.
// It is a distinct, named capability so the synthetic/real distinction is a
// type-level fact rather than a runtime surprise.
type SyntheticScraper struct {
	logger *logrus.Logger
	rng    *rand.Rand
}

func NewSyntheticScraper(logger *logrus.Logger, seed int64) *SyntheticScraper {
	if logger == nil {
		logger = logrus.New()
	}
	return &SyntheticScraper{
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *SyntheticScraper) Name() string {
	return SyntheticName
}

// Search generates records within the criteria's price band. URLs are stable
// per listing index, so repeated runs exercise the store's dedup path the
// same way a real site re-listing would.
func (s *SyntheticScraper) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.RawProperty, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AdapterError{Adapter: s.Name(), Err: err}
	}

	priceMin := criteria.PriceMin
	priceMax := criteria.PriceMax
	if priceMax <= priceMin {
		priceMin, priceMax = 100000, 600000
	}

	locations := syntheticLocations
	if len(criteria.Zones) > 0 {
		locations = criteria.Zones
	}

	properties := make([]models.RawProperty, 0, syntheticBatchSize)
	for i := 0; i < syntheticBatchSize; i++ {
		price := priceMin + s.rng.Float64()*(priceMax-priceMin)
		surface := 30 + s.rng.Intn(121)
		posted := time.Now().Add(-time.Duration(s.rng.Intn(24)) * time.Hour)

		properties = append(properties, models.RawProperty{
			Source:       s.Name(),
			URL:          fmt.Sprintf("https://synthetic.immoradar.local/property/%d", i),
			Title:        syntheticTitles[s.rng.Intn(len(syntheticTitles))],
			Location:     locations[s.rng.Intn(len(locations))],
			Price:        strconv.FormatFloat(float64(int(price)), 'f', 0, 64),
			Surface:      strconv.Itoa(surface),
			Rooms:        strconv.Itoa(1 + s.rng.Intn(5)),
			PropertyType: "Appartement",
			EnergyRating: syntheticRatings[s.rng.Intn(len(syntheticRatings))],
			PostedDate:   posted.Format(time.RFC3339),
		})
	}

	s.logger.WithField("count", len(properties)).Info("Synthetic scraper generated records")
	return properties, nil
}
