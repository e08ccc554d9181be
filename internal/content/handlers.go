package content

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
)

// Handlers exposes the public blog and page endpoints.
type Handlers struct {
	Svc *Service
}

// ListPosts handles GET /posts.
func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 10, 50)
	params := PostListParams{
		Locale: i18n.Code(i18n.FromContext(r.Context())),
		Tag:    strings.TrimSpace(r.URL.Query().Get("tag")),
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Page:   page,
		Limit:  limit,
	}
	result, err := h.Svc.ListPosts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	posts := result.Posts
	if posts == nil {
		posts = []PostSummary{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"pagination": common.Pagination{
			Page:       result.Page,
			PerPage:    result.Limit,
			TotalItems: int(result.Total),
		},
	})
}

// GetPost handles GET /posts/{slug}.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	locale := i18n.Code(i18n.FromContext(r.Context()))
	post, err := h.Svc.GetPost(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"post": post})
}

// GetPage handles GET /pages/{slug}.
func (h *Handlers) GetPage(w http.ResponseWriter, r *http.Request) {
	locale := i18n.Code(i18n.FromContext(r.Context()))
	page, err := h.Svc.GetPage(r.Context(), chi.URLParam(r, "slug"), locale)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"page": page})
}
