package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"immoradar/config"
	"immoradar/internal/models"

	"github.com/sirupsen/logrus"
)

// OpenDataName identifies the public open-data adapter in the registry.
const OpenDataName = "opendata"

const openDataBaseURL = "https://data.opendatasoft.com/api/v2/catalog/datasets/dvf-data/records"

// dvfResponse mirrors the relevant slice of the open-data API payload.
type dvfResponse struct {
	Records []struct {
		Record struct {
			Fields struct {
				MutationID    string  `json:"id_mutation"`
				PropertyValue float64 `json:"valeur_fonciere"`
				SurfaceBuilt  float64 `json:"surface_reelle_bati"`
				SurfaceLand   float64 `json:"surface_terrain"`
				LocalType     string  `json:"type_local"`
				MutationDate  string  `json:"date_mutation"`
			} `json:"fields"`
		} `json:"record"`
	} `json:"records"`
}

// OpenDataScraper queries the French public property-transaction records
// (DVF) per zone. It is a real network adapter over a JSON API.
type OpenDataScraper struct {
	fetcher *Fetcher
	logger  *logrus.Logger
	baseURL string
}

func NewOpenDataScraper(fetcher *Fetcher, logger *logrus.Logger) *OpenDataScraper {
	if logger == nil {
		logger = logrus.New()
	}
	return &OpenDataScraper{
		fetcher: fetcher,
		logger:  logger,
		baseURL: openDataBaseURL,
	}
}

func (s *OpenDataScraper) Name() string {
	return OpenDataName
}

// Search queries each zone independently; a failing zone is logged and
// skipped so the adapter still returns what it already has.
func (s *OpenDataScraper) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.RawProperty, error) {
	var results []models.RawProperty

	zones := criteria.Zones
	if len(zones) == 0 {
		zones = []string{""}
	}

	for _, zone := range zones {
		records, err := s.searchZone(ctx, zone, criteria)
		if err != nil {
			if ctx.Err() != nil {
				return results, &AdapterError{Adapter: s.Name(), Err: ctx.Err()}
			}
			s.logger.WithError(err).WithField("zone", zone).Error("Open-data query failed for zone")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"zone":  zone,
			"count": len(records),
		}).Info("Open-data records found")
		results = append(results, records...)
	}

	return results, nil
}

func (s *OpenDataScraper) searchZone(ctx context.Context, zone string, criteria models.SearchCriteria) ([]models.RawProperty, error) {
	where := fmt.Sprintf("valeur_fonciere >= %.0f AND valeur_fonciere <= %.0f", criteria.PriceMin, criteria.PriceMax)
	if zone != "" {
		// Known departements filter by code, which DVF indexes; anything
		// else falls back to a commune name match
		if z := config.GetZoneByName(zone); z != nil {
			where += fmt.Sprintf(" AND code_departement = '%s'", z.DepartementCode)
		} else {
			where += fmt.Sprintf(" AND commune_name ILIKE '%s'", zone)
		}
	}

	params := url.Values{}
	params.Set("limit", "100")
	params.Set("offset", "0")
	params.Set("where", where)
	params.Set("order_by", "date_mutation desc")

	body, err := s.fetcher.Fetch(ctx, s.baseURL, params)
	if err != nil {
		return nil, err
	}

	var payload dvfResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode open-data payload: %w", err)
	}

	var properties []models.RawProperty
	for _, rec := range payload.Records {
		fields := rec.Record.Fields

		price := fields.PropertyValue
		if price < criteria.PriceMin || price > criteria.PriceMax {
			continue
		}

		surface := fields.SurfaceBuilt
		if surface <= 0 {
			surface = fields.SurfaceLand
		}
		if surface <= 0 {
			// Transactions without a recorded surface get a default
			surface = 70
		}

		rooms := int(surface / 25)
		if rooms < 1 {
			rooms = 1
		}

		localType := fields.LocalType
		if localType == "" {
			localType = "Propriété"
		}

		properties = append(properties, models.RawProperty{
			Source:       s.Name(),
			URL:          fmt.Sprintf("https://dvf.gouv.fr/transaction/%s", fields.MutationID),
			Title:        fmt.Sprintf("%s - %s", localType, zone),
			Location:     zone,
			Price:        strconv.FormatFloat(price, 'f', 0, 64),
			Surface:      strconv.FormatFloat(surface, 'f', 0, 64),
			Rooms:        strconv.Itoa(rooms),
			PropertyType: localType,
			Description:  fmt.Sprintf("Transaction publique DVF du %s", fields.MutationDate),
			PostedDate:   fields.MutationDate,
			// DVF carries no energy rating; the record stays unrated
		})
	}

	return properties, nil
}
