package content

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/swellway/swellway-api/internal/common"
)

// PostInput is the admin payload for creating or updating a post.
type PostInput struct {
	Slug         string        `json:"slug" validate:"required,min=2,max=160"`
	Tags         []string      `json:"tags" validate:"dive,min=1,max=40"`
	CoverImage   *string       `json:"coverImage" validate:"omitempty,url"`
	Translations []Translation `json:"translations" validate:"required,min=1,dive"`
}

// PageInput is the admin payload for creating or replacing a page.
type PageInput struct {
	Slug            string `json:"slug" validate:"required,min=2,max=120"`
	Locale          string `json:"locale" validate:"required,len=2"`
	Title           string `json:"title" validate:"required,max=200"`
	MetaDescription string `json:"metaDescription" validate:"max=300"`
	Body            string `json:"body" validate:"required"`
}

// AdminHandlers exposes the authenticated content management endpoints.
type AdminHandlers struct {
	Repo     AdminRepository
	Validate *validator.Validate
	Locales  []string
}

// ListPosts handles GET /admin/posts with status, tag, and q filters.
func (h *AdminHandlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 20, 100)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && status != StatusDraft && status != StatusPublished {
		common.WriteError(w, common.BadRequest("status must be draft or published", nil))
		return
	}
	posts, total, err := h.Repo.ListAdminPosts(r.Context(), PostListParams{
		Status: status,
		Tag:    strings.TrimSpace(r.URL.Query().Get("tag")),
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if posts == nil {
		posts = []AdminPost{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: int(total)},
	})
}

// CreatePost handles POST /admin/posts.
func (h *AdminHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	id, err := h.Repo.CreatePost(r.Context(), in)
	if err != nil {
		common.WriteError(w, mapContentError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"id": id, "slug": in.Slug})
}

// UpdatePost handles PUT /admin/posts/{id}.
func (h *AdminHandlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	if err := h.Repo.UpdatePost(r.Context(), id, in); err != nil {
		common.WriteError(w, mapContentError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"id": id, "slug": in.Slug})
}

// PublishPost handles POST /admin/posts/{id}/publish.
func (h *AdminHandlers) PublishPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	now := time.Now().UTC()
	if err := h.Repo.SetPostStatus(r.Context(), id, StatusPublished, &now); err != nil {
		common.WriteError(w, mapContentError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusPublished})
}

// UnpublishPost handles POST /admin/posts/{id}/unpublish.
func (h *AdminHandlers) UnpublishPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.SetPostStatus(r.Context(), id, StatusDraft, nil); err != nil {
		common.WriteError(w, mapContentError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusDraft})
}

// DeletePost handles DELETE /admin/posts/{id}.
func (h *AdminHandlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.DeletePost(r.Context(), id); err != nil {
		common.WriteError(w, mapContentError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertPage handles PUT /admin/pages.
func (h *AdminHandlers) UpsertPage(w http.ResponseWriter, r *http.Request) {
	var in PageInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, contentValidationError(err))
		return
	}
	if !h.localeSupported(in.Locale) {
		common.WriteError(w, common.BadRequest("unsupported locale", nil))
		return
	}
	page := Page{
		Slug:            in.Slug,
		Locale:          in.Locale,
		Title:           in.Title,
		MetaDescription: in.MetaDescription,
		Body:            in.Body,
	}
	if err := h.Repo.UpsertPage(r.Context(), page); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"slug": in.Slug, "locale": in.Locale})
}

func (h *AdminHandlers) decodePost(w http.ResponseWriter, r *http.Request) (PostInput, bool) {
	var in PostInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return in, false
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, contentValidationError(err))
		return in, false
	}
	seen := make(map[string]bool, len(in.Translations))
	for _, tr := range in.Translations {
		if !h.localeSupported(tr.Locale) {
			common.WriteError(w, common.BadRequest("unsupported translation locale: "+tr.Locale, nil))
			return in, false
		}
		if tr.Title == "" {
			common.WriteError(w, common.BadRequest("translation title is required", nil))
			return in, false
		}
		if seen[tr.Locale] {
			common.WriteError(w, common.BadRequest("duplicate translation locale: "+tr.Locale, nil))
			return in, false
		}
		seen[tr.Locale] = true
	}
	if !seen["en"] {
		common.WriteError(w, common.BadRequest("an English translation is required", nil))
		return in, false
	}
	return in, true
}

func (h *AdminHandlers) localeSupported(locale string) bool {
	for _, code := range h.Locales {
		if code == locale {
			return true
		}
	}
	return false
}

func contentValidationError(err error) *common.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &common.AppError{
			Code:       "VALIDATION_FAILED",
			Message:    "request validation failed",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
			Details:    fields,
		}
	}
	return common.BadRequest("invalid request payload", err)
}

func mapContentError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return common.NewAppError("SLUG_TAKEN", "slug already in use", http.StatusConflict, err)
	}
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("post not found", err)
	}
	return err
}
