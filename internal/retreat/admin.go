package retreat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/swellway/swellway-api/internal/common"
)

// AdminRepository is the write-side persistence surface used by admin handlers.
type AdminRepository interface {
	CreateDestination(ctx context.Context, in DestinationInput) (Destination, error)
	CreateRetreat(ctx context.Context, in RetreatInput) (string, error)
	UpdateRetreat(ctx context.Context, id string, in RetreatInput) error
	CreateDeparture(ctx context.Context, retreatID string, in DepartureInput) (string, error)
}

// DestinationInput is the admin payload for creating a destination.
type DestinationInput struct {
	Slug        string `json:"slug" validate:"required,min=2,max=80"`
	Name        string `json:"name" validate:"required,min=2,max=120"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	Description string `json:"description" validate:"max=4000"`
}

// RetreatInput is the admin payload for creating or updating a retreat.
type RetreatInput struct {
	Slug          string          `json:"slug" validate:"required,min=2,max=120"`
	Title         string          `json:"title" validate:"required,min=2,max=200"`
	Summary       string          `json:"summary" validate:"max=500"`
	Description   string          `json:"description" validate:"max=10000"`
	DestinationID string          `json:"destinationId" validate:"required,uuid"`
	BasePrice     decimal.Decimal `json:"basePrice" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	HeroImage     *string         `json:"heroImage" validate:"omitempty,url"`
	SkillLevels   []string        `json:"skillLevels" validate:"required,min=1,dive,oneof=beginner intermediate advanced"`
	Published     bool            `json:"published"`
}

// DepartureInput is the admin payload for scheduling a departure.
type DepartureInput struct {
	StartDate  time.Time `json:"startDate" validate:"required"`
	EndDate    time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
	SpotsTotal int       `json:"spotsTotal" validate:"required,min=1,max=200"`
}

// AdminHandlers exposes the authenticated catalogue management endpoints.
type AdminHandlers struct {
	Svc      *Service
	Repo     AdminRepository
	Validate *validator.Validate
}

// CreateDestination handles POST /admin/destinations.
func (h *AdminHandlers) CreateDestination(w http.ResponseWriter, r *http.Request) {
	var in DestinationInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, validationError(err))
		return
	}
	dest, err := h.Repo.CreateDestination(r.Context(), in)
	if err != nil {
		common.WriteError(w, mapWriteError(err))
		return
	}
	h.Svc.InvalidateCache(r.Context())
	common.JSON(w, http.StatusCreated, map[string]any{"destination": dest})
}

// CreateRetreat handles POST /admin/retreats.
func (h *AdminHandlers) CreateRetreat(w http.ResponseWriter, r *http.Request) {
	var in RetreatInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, validationError(err))
		return
	}
	id, err := h.Repo.CreateRetreat(r.Context(), in)
	if err != nil {
		common.WriteError(w, mapWriteError(err))
		return
	}
	h.Svc.InvalidateCache(r.Context())
	common.JSON(w, http.StatusCreated, map[string]any{"id": id, "slug": in.Slug})
}

// UpdateRetreat handles PUT /admin/retreats/{id}.
func (h *AdminHandlers) UpdateRetreat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in RetreatInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, validationError(err))
		return
	}
	if err := h.Repo.UpdateRetreat(r.Context(), id, in); err != nil {
		common.WriteError(w, mapWriteError(err))
		return
	}
	h.Svc.InvalidateCache(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"id": id, "slug": in.Slug})
}

// CreateDeparture handles POST /admin/retreats/{id}/departures.
func (h *AdminHandlers) CreateDeparture(w http.ResponseWriter, r *http.Request) {
	retreatID := chi.URLParam(r, "id")
	var in DepartureInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, validationError(err))
		return
	}
	id, err := h.Repo.CreateDeparture(r.Context(), retreatID, in)
	if err != nil {
		common.WriteError(w, mapWriteError(err))
		return
	}
	h.Svc.InvalidateCache(r.Context())
	common.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

func validationError(err error) *common.AppError {
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

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return common.NewAppError("SLUG_TAKEN", "slug already in use", http.StatusConflict, err)
		case "23503":
			return common.BadRequest("referenced record does not exist", err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return common.NotFound("retreat not found", err)
	}
	return err
}

// CreateDestination inserts a destination row.
func (r *PGRepository) CreateDestination(ctx context.Context, in DestinationInput) (Destination, error) {
	var dest Destination
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO destinations (slug, name, country_code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, slug, name, country_code, description`,
		in.Slug, in.Name, in.CountryCode, in.Description,
	).Scan(&dest.ID, &dest.Slug, &dest.Name, &dest.CountryCode, &dest.Description)
	if err != nil {
		return Destination{}, fmt.Errorf("create destination: %w", err)
	}
	return dest, nil
}

// CreateRetreat inserts a retreat row and returns its id.
func (r *PGRepository) CreateRetreat(ctx context.Context, in RetreatInput) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO retreats (slug, title, summary, description, destination_id,
		                      base_price, currency, hero_image, skill_levels, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		in.Slug, in.Title, in.Summary, in.Description, in.DestinationID,
		in.BasePrice, in.Currency, in.HeroImage, in.SkillLevels, in.Published,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create retreat: %w", err)
	}
	return id, nil
}

// UpdateRetreat replaces the mutable fields of a retreat.
func (r *PGRepository) UpdateRetreat(ctx context.Context, id string, in RetreatInput) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE retreats
		SET slug = $2, title = $3, summary = $4, description = $5, destination_id = $6,
		    base_price = $7, currency = $8, hero_image = $9, skill_levels = $10,
		    published = $11, updated_at = now()
		WHERE id = $1`,
		id, in.Slug, in.Title, in.Summary, in.Description, in.DestinationID,
		in.BasePrice, in.Currency, in.HeroImage, in.SkillLevels, in.Published,
	)
	if err != nil {
		return fmt.Errorf("update retreat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDeparture schedules a departure for a retreat.
func (r *PGRepository) CreateDeparture(ctx context.Context, retreatID string, in DepartureInput) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO retreat_departures (retreat_id, start_date, end_date, spots_total)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		retreatID, in.StartDate, in.EndDate, in.SpotsTotal,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create departure: %w", err)
	}
	return id, nil
}
