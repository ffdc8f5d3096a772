package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"immoradar/config"
	"immoradar/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// BienIciName identifies the BienIci HTML adapter in the registry.
const BienIciName = "bienici"

const bienIciBaseURL = "https://www.bienici.com"

// bienIciRatingCodes maps the A..G scale to the site's dpeMax URL codes.
var bienIciRatingCodes = map[string]string{
	"A": "1", "B": "2", "C": "3", "D": "4", "E": "5", "F": "6", "G": "7",
}

// BienIciScraper extracts listings from BienIci search result pages. Price
// and surface come out as the site's locale-formatted strings; the
// normalizer coerces them.
type BienIciScraper struct {
	fetcher *Fetcher
	logger  *logrus.Logger
	baseURL string
}

func NewBienIciScraper(fetcher *Fetcher, logger *logrus.Logger) *BienIciScraper {
	if logger == nil {
		logger = logrus.New()
	}
	return &BienIciScraper{
		fetcher: fetcher,
		logger:  logger,
		baseURL: bienIciBaseURL,
	}
}

func (s *BienIciScraper) Name() string {
	return BienIciName
}

func (s *BienIciScraper) searchURL(criteria models.SearchCriteria) string {
	var params []string
	if criteria.PriceMax > 0 {
		params = append(params, fmt.Sprintf("prixMax=%.0f", criteria.PriceMax))
	}
	if criteria.PriceMin > 0 {
		params = append(params, fmt.Sprintf("prixMin=%.0f", criteria.PriceMin))
	}
	if code, ok := bienIciRatingCodes[strings.ToUpper(criteria.EnergyRatingMax)]; ok {
		params = append(params, "dpeMax="+code)
	}
	if len(criteria.Zones) > 0 {
		params = append(params, "loc="+config.NormalizeZone(criteria.Zones[0]))
	}
	params = append(params, "type=1", "tri=0")
	return s.baseURL + "/annonces/achat/?" + strings.Join(params, "&")
}

// Search fetches one result page and parses the listing cards out of it.
func (s *BienIciScraper) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.RawProperty, error) {
	target := s.searchURL(criteria)
	s.logger.WithField("url", target).Info("Scraping BienIci")

	body, err := s.fetcher.Fetch(ctx, target, nil)
	if err != nil {
		return nil, &AdapterError{Adapter: s.Name(), Err: err}
	}

	return s.parsePage(body)
}

func (s *BienIciScraper) parsePage(body []byte) ([]models.RawProperty, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &AdapterError{Adapter: s.Name(), Err: err}
	}

	var properties []models.RawProperty
	doc.Find("div.annonce-card, article.ad-card, div.resultsListContainer article").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = s.baseURL + href
		}

		title := strings.TrimSpace(card.Find(".ad-title, h2, h3").First().Text())
		price := strings.TrimSpace(card.Find(".ad-price, .price, [class*='price']").First().Text())
		location := strings.TrimSpace(card.Find(".ad-location, .location, [class*='localisation']").First().Text())
		surface := strings.TrimSpace(card.Find(".ad-surface, [class*='surface']").First().Text())
		rating := strings.TrimSpace(card.Find("[class*='dpe']").First().Text())

		properties = append(properties, models.RawProperty{
			Source:       s.Name(),
			URL:          href,
			Title:        title,
			Location:     location,
			Price:        price,
			Surface:      surface,
			EnergyRating: rating,
		})
	})

	s.logger.WithField("count", len(properties)).Info("BienIci listings parsed")
	return properties, nil
}
