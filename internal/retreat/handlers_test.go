package retreat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/common"
)

type fakeRepo struct {
	destinations []Destination
	items        []ListItem
	detail       Detail
	detailErr    error
	lastParams   ListParams
}

func (f *fakeRepo) ListDestinations(ctx context.Context) ([]Destination, error) {
	return f.destinations, nil
}

func (f *fakeRepo) CountRetreats(ctx context.Context, params ListParams) (int64, error) {
	return int64(len(f.items)), nil
}

func (f *fakeRepo) ListRetreats(ctx context.Context, params ListParams) ([]ListItem, error) {
	f.lastParams = params
	return f.items, nil
}

func (f *fakeRepo) GetRetreatBySlug(ctx context.Context, slug string) (Detail, error) {
	if f.detailErr != nil {
		return Detail{}, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeRepo) ListDepartures(ctx context.Context, retreatID string) ([]Departure, error) {
	return f.detail.Departures, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Repo: repo, Cache: NewCache(nil, 0), DefaultLimit: 20, MaxLimit: 50})
	require.NoError(t, err)
	return svc
}

func newTestRouter(svc *Service) *chi.Mux {
	h := &Handlers{Svc: svc}
	router := chi.NewRouter()
	router.Get("/destinations", h.ListDestinations)
	router.Get("/retreats", h.ListRetreats)
	router.Get("/retreats/{slug}", h.GetRetreat)
	router.Get("/retreats/{slug}/departures", h.ListRetreatDepartures)
	return router
}

func TestParseListParams(t *testing.T) {
	svc := newTestService(t, &fakeRepo{})

	t.Run("defaults", func(t *testing.T) {
		params, err := svc.ParseListParams(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, 1, params.Page)
		assert.Equal(t, 20, params.Limit)
		assert.Empty(t, params.Sort)
	})

	t.Run("limit clamped to max", func(t *testing.T) {
		params, err := svc.ParseListParams(url.Values{"limit": {"500"}})
		require.NoError(t, err)
		assert.Equal(t, 50, params.Limit)
	})

	t.Run("prices parsed as decimals", func(t *testing.T) {
		params, err := svc.ParseListParams(url.Values{"minPrice": {"100.50"}, "maxPrice": {"900"}})
		require.NoError(t, err)
		require.NotNil(t, params.MinPrice)
		assert.True(t, params.MinPrice.Equal(decimal.RequireFromString("100.50")))
	})

	t.Run("inverted price range rejected", func(t *testing.T) {
		_, err := svc.ParseListParams(url.Values{"minPrice": {"500"}, "maxPrice": {"100"}})
		require.Error(t, err)
		assert.True(t, common.IsAppError(err))
	})

	t.Run("month format enforced", func(t *testing.T) {
		_, err := svc.ParseListParams(url.Values{"month": {"2026-13"}})
		require.Error(t, err)

		params, err := svc.ParseListParams(url.Values{"month": {"2026-09"}})
		require.NoError(t, err)
		assert.Equal(t, "2026-09", params.Month)
	})

	t.Run("skill whitelist enforced", func(t *testing.T) {
		_, err := svc.ParseListParams(url.Values{"skill": {"expert"}})
		require.Error(t, err)

		params, err := svc.ParseListParams(url.Values{"skill": {"beginner"}})
		require.NoError(t, err)
		assert.Equal(t, "beginner", params.Skill)
	})

	t.Run("unknown sort rejected", func(t *testing.T) {
		_, err := svc.ParseListParams(url.Values{"sort": {"alphabetical"}})
		require.Error(t, err)
	})
}

func TestListRetreatsHandler(t *testing.T) {
	repo := &fakeRepo{
		items: []ListItem{
			{
				ID:              "r1",
				Slug:            "ericeira-swell-week",
				Title:           "Ericeira Swell Week",
				DestinationSlug: "ericeira",
				CountryCode:     "PT",
				PriceFrom:       decimal.RequireFromString("749.00"),
				Currency:        "EUR",
				SkillLevels:     []string{"beginner", "intermediate"},
			},
		},
	}
	router := newTestRouter(newTestService(t, repo))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/retreats?destination=ericeira&sort=price_asc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Retreats   []ListItem        `json:"retreats"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Retreats, 1)
	assert.Equal(t, "ericeira-swell-week", body.Retreats[0].Slug)
	assert.Equal(t, 1, body.Pagination.TotalItems)
	assert.Equal(t, "ericeira", repo.lastParams.Destination)
	assert.Equal(t, "price_asc", repo.lastParams.Sort)
}

func TestListRetreatsHandlerBadParams(t *testing.T) {
	router := newTestRouter(newTestService(t, &fakeRepo{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/retreats?page=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestGetRetreatHandler(t *testing.T) {
	detail := Detail{
		ListItem: ListItem{
			ID:          "r1",
			Slug:        "taghazout-point-camp",
			Title:       "Taghazout Point Camp",
			CountryCode: "MA",
			PriceFrom:   decimal.RequireFromString("520.00"),
			Currency:    "EUR",
		},
		Description: "Ten days of right-hand points.",
	}

	t.Run("found", func(t *testing.T) {
		router := newTestRouter(newTestService(t, &fakeRepo{detail: detail}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/retreats/taghazout-point-camp", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Retreat Detail `json:"retreat"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "taghazout-point-camp", body.Retreat.Slug)
		assert.NotNil(t, body.Retreat.Packages)
	})

	t.Run("missing slug yields 404", func(t *testing.T) {
		router := newTestRouter(newTestService(t, &fakeRepo{detailErr: ErrNotFound}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/retreats/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}

func TestListDestinationsHandler(t *testing.T) {
	repo := &fakeRepo{destinations: []Destination{
		{ID: "d1", Slug: "ericeira", Name: "Ericeira", CountryCode: "PT"},
		{ID: "d2", Slug: "hossegor", Name: "Hossegor", CountryCode: "FR"},
	}}
	router := newTestRouter(newTestService(t, repo))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/destinations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Destinations []Destination `json:"destinations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Destinations, 2)
}
