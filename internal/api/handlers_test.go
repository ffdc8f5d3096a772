package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"immoradar/config"
	"immoradar/internal/database"
	"immoradar/internal/models"
	"immoradar/internal/queue"
	"immoradar/internal/scraping"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	name string
	raws []models.RawProperty
}

func (s *stubScraper) Name() string { return s.name }

func (s *stubScraper) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.RawProperty, error) {
	return s.raws, nil
}

type testEnv struct {
	router *gin.Engine
	db     *database.Database
	queue  *queue.IngestQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	ingestQueue := queue.NewIngestQueue(8, logger)
	t.Cleanup(func() { ingestQueue.Close() })

	manager := scraping.NewScraperManager(&config.Config{}, logger)
	manager.Register(&stubScraper{name: "stub", raws: []models.RawProperty{
		{
			Source:   "stub",
			URL:      "https://stub.example.com/1",
			Title:    "Appartement 3 pièces",
			Location: "Paris 15",
			Price:    "320 000 €",
		},
	}})

	router := gin.New()
	SetupRoutes(router, db, manager, ingestQueue, logger)

	return &testEnv{router: router, db: db, queue: ingestQueue}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func seedProperty(t *testing.T, db *database.Database, id, url string, price float64) {
	t.Helper()
	_, err := db.UpsertProperty(&models.Property{
		ID:            id,
		Source:        "stub",
		URL:           url,
		Title:         "Appartement",
		Location:      "Paris 15",
		Price:         price,
		EnergyRating:  "C",
		EnergyOrdinal: models.EnergyRatingOrdinal("C"),
	})
	require.NoError(t, err)
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/search", SearchRequest{
		PriceMin: 200000,
		PriceMax: 500000,
		Zones:    []string{"Paris"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count      int               `json:"count"`
		Properties []models.Property `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "stub", resp.Properties[0].Source)
	assert.Equal(t, 320000.0, resp.Properties[0].Price)

	// Results were queued for the batch processor
	assert.Equal(t, 1, env.queue.Len())
}

func TestSearchEndpoint_BadBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrapeOneEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/scrape/stub", SearchRequest{})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/scrape/nope", SearchRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPropertiesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedProperty(t, env.db, "p1", "https://stub.example.com/1", 250000)
	seedProperty(t, env.db, "p2", "https://stub.example.com/2", 600000)

	w := env.do(t, http.MethodGet, "/api/properties?price_max=500000", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count      int               `json:"count"`
		Properties []models.Property `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "p1", resp.Properties[0].ID)
}

func TestGetStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedProperty(t, env.db, "p1", "https://stub.example.com/1", 250000)
	seedProperty(t, env.db, "p2", "https://stub.example.com/2", 350000)

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.PropertyStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 250000.0, stats.MinPrice)
	assert.Equal(t, 350000.0, stats.MaxPrice)
}

func TestSetStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedProperty(t, env.db, "p1", "https://stub.example.com/1", 250000)

	w := env.do(t, http.MethodPost, "/api/properties/p1/status", StatusRequest{
		Status: models.StatusContacted,
		Notes:  "left a message",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.db.GetProperty("p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, stored.Status)

	// Unknown status is rejected before touching the store
	w = env.do(t, http.MethodPost, "/api/properties/p1/status", StatusRequest{Status: "sold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/properties/nope/status", StatusRequest{Status: models.StatusVisited})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavoriteAndHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	seedProperty(t, env.db, "p1", "https://stub.example.com/1", 250000)

	w := env.do(t, http.MethodPost, "/api/properties/p1/favorite", FavoriteRequest{Favorite: true})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.db.GetProperty("p1")
	require.NoError(t, err)
	assert.True(t, stored.IsFavorite)

	env.do(t, http.MethodPost, "/api/properties/p1/status", StatusRequest{Status: models.StatusContacted})
	env.do(t, http.MethodPost, "/api/properties/p1/status", StatusRequest{Status: models.StatusVisited})

	w = env.do(t, http.MethodGet, "/api/properties/p1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int                   `json:"count"`
		History []models.StatusChange `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, models.StatusContacted, resp.History[0].NewStatus)
	assert.Equal(t, models.StatusVisited, resp.History[1].NewStatus)
}

func TestGetZonesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Zones []config.Zone `json:"zones"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Zones)
	assert.Equal(t, "Paris", resp.Zones[0].Name)
	assert.Equal(t, "75", resp.Zones[0].DepartementCode)
}

func TestReloadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool     `json:"success"`
		Adapters []string `json:"adapters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	// All adapters are disabled in the test configuration
	assert.Empty(t, resp.Adapters)
}
