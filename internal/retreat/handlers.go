package retreat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swellway/swellway-api/internal/common"
)

// Handlers exposes the public catalogue endpoints.
type Handlers struct {
	Svc *Service
}

// ListDestinations handles GET /destinations.
func (h *Handlers) ListDestinations(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.Svc.Destinations(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if destinations == nil {
		destinations = []Destination{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"destinations": destinations})
}

// ListRetreats handles GET /retreats with filter, sort, and pagination params.
func (h *Handlers) ListRetreats(w http.ResponseWriter, r *http.Request) {
	params, err := h.Svc.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items := result.Items
	if items == nil {
		items = []ListItem{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"retreats": items,
		"pagination": common.Pagination{
			Page:       result.Page,
			PerPage:    result.Limit,
			TotalItems: int(result.Total),
		},
	})
}

// GetRetreat handles GET /retreats/{slug}.
func (h *Handlers) GetRetreat(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Svc.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if detail.Packages == nil {
		detail.Packages = []Package{}
	}
	if detail.Departures == nil {
		detail.Departures = []Departure{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"retreat": detail})
}

// ListRetreatDepartures handles GET /retreats/{slug}/departures.
func (h *Handlers) ListRetreatDepartures(w http.ResponseWriter, r *http.Request) {
	departures, err := h.Svc.Departures(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if departures == nil {
		departures = []Departure{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"departures": departures})
}
