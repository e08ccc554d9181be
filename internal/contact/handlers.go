package contact

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
	"github.com/swellway/swellway-api/internal/tasks"
)

// Handlers exposes the public contact endpoint.
type Handlers struct {
	Repo     Repository
	Validate *validator.Validate
	Enqueuer tasks.Enqueuer
	Log      zerolog.Logger
}

// Create handles POST /contact. The route sits behind a per-IP rate limit.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if in.Website != "" {
		// Honeypot tripped. Pretend success so the bot learns nothing.
		common.JSON(w, http.StatusAccepted, map[string]string{"status": "received"})
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			common.WriteError(w, &common.AppError{
				Code:       "VALIDATION_FAILED",
				Message:    "request validation failed",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        err,
				Details:    fields,
			})
			return
		}
		common.WriteError(w, common.BadRequest("invalid request payload", err))
		return
	}

	locale := i18n.Code(i18n.FromContext(r.Context()))
	msg := Message{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Subject: strings.TrimSpace(in.Subject),
		Body:    in.Body,
		Locale:  locale,
	}
	if err := h.Repo.Create(r.Context(), &msg); err != nil {
		common.WriteError(w, err)
		return
	}

	if h.Enqueuer != nil {
		task, err := tasks.NewContactAckEmailTask(tasks.ContactAckPayload{
			Name: msg.Name, Email: msg.Email, Subject: msg.Subject, Locale: locale,
		})
		if err == nil {
			if _, err := h.Enqueuer.EnqueueContext(r.Context(), task); err != nil {
				h.Log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to enqueue contact ack")
			}
		}
	}

	common.JSON(w, http.StatusAccepted, map[string]string{"status": "received", "id": msg.ID})
}

// AdminHandlers exposes the admin inbox endpoints.
type AdminHandlers struct {
	Repo Repository
}

// List handles GET /admin/contact-messages.
func (h *AdminHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 20, 100)
	onlyUnread := r.URL.Query().Get("unread") == "true"
	messages, total, err := h.Repo.List(r.Context(), onlyUnread, page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"messages":   messages,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: int(total)},
	})
}

// MarkRead handles POST /admin/contact-messages/{id}/read.
func (h *AdminHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("message not found", err))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"id": id, "status": "read"})
}
