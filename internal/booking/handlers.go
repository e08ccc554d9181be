package booking

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
)

// Handlers exposes the public booking endpoints.
type Handlers struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create handles POST /bookings. The route is wrapped by the idempotency
// middleware so retried submissions do not double-book.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, bookingValidationError(err))
		return
	}
	locale := i18n.Code(i18n.FromContext(r.Context()))
	result, err := h.Svc.Create(r.Context(), in, locale)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, result)
}

// Get handles GET /bookings/{reference}?email=...
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		common.WriteError(w, common.BadRequest("email query parameter is required", nil))
		return
	}
	b, err := h.Svc.GetByReference(r.Context(), chi.URLParam(r, "reference"), email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"booking": b})
}

// AdminHandlers exposes the authenticated booking management endpoints.
type AdminHandlers struct {
	Svc *Service
}

// List handles GET /admin/bookings with status, email, retreat, and date
// filters.
func (h *AdminHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, 20, 100)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", StatusPendingPayment, StatusConfirmed, StatusFailed, StatusExpired, StatusCancelled:
	default:
		common.WriteError(w, common.BadRequest("unknown status filter", nil))
		return
	}
	params := AdminListParams{
		Status:  status,
		Email:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email"))),
		Retreat: strings.TrimSpace(r.URL.Query().Get("retreat")),
		Page:    page,
		Limit:   limit,
	}
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.WriteError(w, common.BadRequest("from must use the YYYY-MM-DD format", err))
			return
		}
		params.From = day
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.WriteError(w, common.BadRequest("to must use the YYYY-MM-DD format", err))
			return
		}
		// to is inclusive of the whole day
		params.To = day.AddDate(0, 0, 1)
	}
	if !params.From.IsZero() && !params.To.IsZero() && params.To.Before(params.From) {
		common.WriteError(w, common.BadRequest("from must not be after to", nil))
		return
	}
	bookings, total, err := h.Svc.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"bookings":   bookings,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: int(total)},
	})
}

// Get handles GET /admin/bookings/{reference}.
func (h *AdminHandlers) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.repo.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound("booking not found", err))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"booking": b})
}

// Cancel handles POST /admin/bookings/{reference}/cancel.
func (h *AdminHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"booking": b})
}

func bookingValidationError(err error) *common.AppError {
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
