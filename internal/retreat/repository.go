package retreat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a retreat slug has no published match.
var ErrNotFound = errors.New("retreat: not found")

// Repository is the persistence surface the service depends on.
type Repository interface {
	ListDestinations(ctx context.Context) ([]Destination, error)
	CountRetreats(ctx context.Context, params ListParams) (int64, error)
	ListRetreats(ctx context.Context, params ListParams) ([]ListItem, error)
	GetRetreatBySlug(ctx context.Context, slug string) (Detail, error)
	ListDepartures(ctx context.Context, retreatID string) ([]Departure, error)
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

const listColumns = `r.id, r.slug, r.title, r.summary, d.slug, d.country_code,
       r.base_price, r.currency, r.hero_image, r.skill_levels`

// ListDestinations returns all destinations ordered by name.
func (r *PGRepository) ListDestinations(ctx context.Context) ([]Destination, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, slug, name, country_code, description
		FROM destinations
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var out []Destination
	for rows.Next() {
		var d Destination
		if err := rows.Scan(&d.ID, &d.Slug, &d.Name, &d.CountryCode, &d.Description); err != nil {
			return nil, err
		}
		d.CountryCode = strings.TrimSpace(d.CountryCode)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountRetreats returns the number of published retreats matching the filters.
func (r *PGRepository) CountRetreats(ctx context.Context, params ListParams) (int64, error) {
	where, args := buildFilters(params)
	var total int64
	err := r.Pool.QueryRow(ctx, `
		SELECT count(*)
		FROM retreats r
		JOIN destinations d ON d.id = r.destination_id
		`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count retreats: %w", err)
	}
	return total, nil
}

// ListRetreats returns a filtered, sorted page of published retreats.
func (r *PGRepository) ListRetreats(ctx context.Context, params ListParams) ([]ListItem, error) {
	where, args := buildFilters(params)
	order := orderClause(params.Sort)
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM retreats r
		JOIN destinations d ON d.id = r.destination_id
		%s
		%s
		LIMIT $%d OFFSET $%d`, listColumns, where, order, len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list retreats: %w", err)
	}
	defer rows.Close()

	var out []ListItem
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetRetreatBySlug loads a published retreat with its packages and departures.
func (r *PGRepository) GetRetreatBySlug(ctx context.Context, slug string) (Detail, error) {
	var detail Detail
	var destID string
	err := r.Pool.QueryRow(ctx, `
		SELECT `+listColumns+`, r.description, r.updated_at,
		       d.id, d.name, d.description
		FROM retreats r
		JOIN destinations d ON d.id = r.destination_id
		WHERE r.slug = $1 AND r.published`, slug).Scan(
		&detail.ID, &detail.Slug, &detail.Title, &detail.Summary,
		&detail.DestinationSlug, &detail.CountryCode,
		&detail.PriceFrom, &detail.Currency, &detail.HeroImage, &detail.SkillLevels,
		&detail.Description, &detail.UpdatedAt,
		&destID, &detail.Destination.Name, &detail.Destination.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("get retreat by slug: %w", err)
	}
	detail.CountryCode = strings.TrimSpace(detail.CountryCode)
	detail.Destination.ID = destID
	detail.Destination.Slug = detail.DestinationSlug
	detail.Destination.CountryCode = detail.CountryCode

	pkgRows, err := r.Pool.Query(ctx, `
		SELECT id, name, description, price, max_guests
		FROM retreat_packages
		WHERE retreat_id = $1
		ORDER BY price`, detail.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list packages: %w", err)
	}
	defer pkgRows.Close()
	for pkgRows.Next() {
		var p Package
		if err := pkgRows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.MaxGuests); err != nil {
			return Detail{}, err
		}
		detail.Packages = append(detail.Packages, p)
	}
	if err := pkgRows.Err(); err != nil {
		return Detail{}, err
	}

	departures, err := r.ListDepartures(ctx, detail.ID)
	if err != nil {
		return Detail{}, err
	}
	detail.Departures = departures
	return detail, nil
}

// ListDepartures returns upcoming departures for a retreat.
func (r *PGRepository) ListDepartures(ctx context.Context, retreatID string) ([]Departure, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, start_date, end_date, spots_total, spots_total - spots_booked
		FROM retreat_departures
		WHERE retreat_id = $1 AND start_date >= CURRENT_DATE
		ORDER BY start_date`, retreatID)
	if err != nil {
		return nil, fmt.Errorf("list departures: %w", err)
	}
	defer rows.Close()

	var out []Departure
	for rows.Next() {
		var dep Departure
		if err := rows.Scan(&dep.ID, &dep.StartDate, &dep.EndDate, &dep.SpotsTotal, &dep.SpotsLeft); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListItem(row rowScanner) (ListItem, error) {
	var item ListItem
	if err := row.Scan(
		&item.ID, &item.Slug, &item.Title, &item.Summary,
		&item.DestinationSlug, &item.CountryCode,
		&item.PriceFrom, &item.Currency, &item.HeroImage, &item.SkillLevels,
	); err != nil {
		return ListItem{}, err
	}
	item.CountryCode = strings.TrimSpace(item.CountryCode)
	return item, nil
}

// buildFilters assembles the WHERE clause shared by count and list queries.
func buildFilters(params ListParams) (string, []any) {
	clauses := []string{"r.published"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(params.Query); q != "" {
		p := arg("%" + q + "%")
		clauses = append(clauses, fmt.Sprintf("(r.title ILIKE %s OR r.summary ILIKE %s)", p, p))
	}
	if dest := strings.TrimSpace(params.Destination); dest != "" {
		clauses = append(clauses, "d.slug = "+arg(dest))
	}
	if params.MinPrice != nil {
		clauses = append(clauses, "r.base_price >= "+arg(*params.MinPrice))
	}
	if params.MaxPrice != nil {
		clauses = append(clauses, "r.base_price <= "+arg(*params.MaxPrice))
	}
	if skill := strings.TrimSpace(params.Skill); skill != "" {
		clauses = append(clauses, arg(skill)+" = ANY(r.skill_levels)")
	}
	if month := strings.TrimSpace(params.Month); month != "" {
		p := arg(month)
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM retreat_departures rd
			WHERE rd.retreat_id = r.id AND to_char(rd.start_date, 'YYYY-MM') = %s
		)`, p))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(sort string) string {
	switch sort {
	case "price_asc":
		return "ORDER BY r.base_price ASC, r.slug"
	case "price_desc":
		return "ORDER BY r.base_price DESC, r.slug"
	case "newest":
		return "ORDER BY r.created_at DESC"
	default:
		return "ORDER BY r.title"
	}
}
