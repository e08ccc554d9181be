package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced to the service layer.
var (
	ErrNotFound    = errors.New("booking: not found")
	ErrNoCapacity  = errors.New("booking: departure has no remaining capacity")
	ErrDeparted    = errors.New("booking: departure is in the past")
	ErrWrongStatus = errors.New("booking: status does not allow this transition")
)

// Repository is the persistence surface the booking service depends on.
type Repository interface {
	GetQuote(ctx context.Context, departureID, packageID string) (Quote, error)
	Create(ctx context.Context, b *Booking) error
	GetByReference(ctx context.Context, reference string) (Booking, error)
	SetPaymentIntent(ctx context.Context, id, provider, intentID string) error
	Transition(ctx context.Context, reference, to string, releaseSpots bool) (Booking, error)
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
	List(ctx context.Context, params AdminListParams) ([]Booking, int64, error)
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

const bookingColumns = `b.id, b.reference, b.retreat_id, b.package_id, b.departure_id,
       b.guest_name, b.guest_email, b.guest_count, b.billing_country, b.locale,
       b.currency, b.amount_subtotal, b.vat_rate, b.vat_amount, b.amount_total,
       b.status, b.payment_provider, b.payment_intent_id, b.notes,
       b.created_at, b.updated_at`

// GetQuote loads the pricing context for a departure and package pair,
// verifying both belong to the same retreat.
func (r *PGRepository) GetQuote(ctx context.Context, departureID, packageID string) (Quote, error) {
	var q Quote
	err := r.Pool.QueryRow(ctx, `
		SELECT rt.id, rt.title, d.country_code, p.price, p.max_guests, rt.currency,
		       dep.spots_total - dep.spots_booked, dep.start_date
		FROM retreat_departures dep
		JOIN retreats rt ON rt.id = dep.retreat_id
		JOIN destinations d ON d.id = rt.destination_id
		JOIN retreat_packages p ON p.retreat_id = rt.id AND p.id = $2
		WHERE dep.id = $1 AND rt.published`, departureID, packageID).Scan(
		&q.RetreatID, &q.RetreatTitle, &q.DestinationCountry, &q.PackagePrice,
		&q.MaxGuests, &q.Currency, &q.SpotsLeft, &q.StartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	q.DestinationCountry = strings.TrimSpace(q.DestinationCountry)
	return q, nil
}

// Create holds the seats and inserts the booking in a single transaction. The
// conditional capacity update makes concurrent overbooking impossible without
// row locks.
func (r *PGRepository) Create(ctx context.Context, b *Booking) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE retreat_departures
		SET spots_booked = spots_booked + $2
		WHERE id = $1
		  AND spots_booked + $2 <= spots_total
		  AND start_date > CURRENT_DATE`,
		b.DepartureID, b.GuestCount)
	if err != nil {
		return fmt.Errorf("hold spots: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var startDate time.Time
		err := tx.QueryRow(ctx, `SELECT start_date FROM retreat_departures WHERE id = $1`, b.DepartureID).Scan(&startDate)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err == nil && !startDate.After(time.Now()) {
			return ErrDeparted
		}
		return ErrNoCapacity
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (reference, retreat_id, package_id, departure_id,
		                      guest_name, guest_email, guest_count, billing_country, locale,
		                      currency, amount_subtotal, vat_rate, vat_amount, amount_total,
		                      status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`,
		b.Reference, b.RetreatID, b.PackageID, b.DepartureID,
		b.GuestName, b.GuestEmail, b.GuestCount, b.BillingCountry, b.Locale,
		b.Currency, b.AmountSubtotal, b.VATRate, b.VATAmount, b.AmountTotal,
		b.Status, b.Notes,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByReference loads a booking with its retreat title.
func (r *PGRepository) GetByReference(ctx context.Context, reference string) (Booking, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`, rt.title
		FROM bookings b
		JOIN retreats rt ON rt.id = b.retreat_id
		WHERE b.reference = $1`, reference)
	b, err := scanBookingWithTitle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// SetPaymentIntent records the provider reference on a freshly created booking.
func (r *PGRepository) SetPaymentIntent(ctx context.Context, id, provider, intentID string) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE bookings
		SET payment_provider = $2, payment_intent_id = $3, updated_at = now()
		WHERE id = $1`, id, provider, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves a PENDING_PAYMENT booking to a terminal status, releasing
// the held spots when the booking will not be travelled. Reapplying the same
// terminal status is a no-op rather than an error.
func (r *PGRepository) Transition(ctx context.Context, reference, to string, releaseSpots bool) (Booking, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE bookings b
		SET status = $2, updated_at = now()
		FROM retreats rt
		WHERE b.reference = $1 AND b.status = '`+StatusPendingPayment+`' AND rt.id = b.retreat_id
		RETURNING `+bookingColumns+`, rt.title`, reference, to)
	b, err := scanBookingWithTitle(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, fmt.Errorf("transition booking: %w", err)
		}
		current, getErr := r.GetByReference(ctx, reference)
		if getErr != nil {
			return Booking{}, getErr
		}
		if current.Status == to {
			return current, nil
		}
		return Booking{}, fmt.Errorf("%w: %s is %s", ErrWrongStatus, reference, current.Status)
	}

	if releaseSpots {
		if _, err := tx.Exec(ctx, `
			UPDATE retreat_departures
			SET spots_booked = GREATEST(spots_booked - $2, 0)
			WHERE id = $1`, b.DepartureID, b.GuestCount); err != nil {
			return Booking{}, fmt.Errorf("release spots: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, fmt.Errorf("commit: %w", err)
	}
	return b, nil
}

// ExpireStale marks pending bookings older than the cutoff as EXPIRED and
// releases their spots. Returns the number of bookings expired.
func (r *PGRepository) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE bookings
		SET status = '`+StatusExpired+`', updated_at = now()
		WHERE status = '`+StatusPendingPayment+`' AND created_at < now() - $1::interval
		RETURNING departure_id, guest_count`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("expire bookings: %w", err)
	}
	type release struct {
		departureID string
		guests      int
	}
	var releases []release
	for rows.Next() {
		var rel release
		if err := rows.Scan(&rel.departureID, &rel.guests); err != nil {
			rows.Close()
			return 0, err
		}
		releases = append(releases, rel)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, rel := range releases {
		if _, err := tx.Exec(ctx, `
			UPDATE retreat_departures
			SET spots_booked = GREATEST(spots_booked - $2, 0)
			WHERE id = $1`, rel.departureID, rel.guests); err != nil {
			return 0, fmt.Errorf("release spots: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(releases), nil
}

// List returns a filtered page of bookings for the admin UI.
func (r *PGRepository) List(ctx context.Context, params AdminListParams) ([]Booking, int64, error) {
	clauses := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if params.Status != "" {
		clauses = append(clauses, "b.status = "+arg(params.Status))
	}
	if params.Email != "" {
		clauses = append(clauses, "b.guest_email = "+arg(params.Email))
	}
	if params.Retreat != "" {
		p := arg(params.Retreat)
		clauses = append(clauses, fmt.Sprintf("(b.retreat_id::text = %s OR rt.slug = %s)", p, p))
	}
	if !params.From.IsZero() {
		clauses = append(clauses, "b.created_at >= "+arg(params.From))
	}
	if !params.To.IsZero() {
		clauses = append(clauses, "b.created_at < "+arg(params.To))
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := r.Pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings b
		JOIN retreats rt ON rt.id = b.retreat_id
		`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s, rt.title
		FROM bookings b
		JOIN retreats rt ON rt.id = b.retreat_id
		%s
		ORDER BY b.created_at DESC
		LIMIT $%d OFFSET $%d`, bookingColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingWithTitle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookingWithTitle(row rowScanner) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.Reference, &b.RetreatID, &b.PackageID, &b.DepartureID,
		&b.GuestName, &b.GuestEmail, &b.GuestCount, &b.BillingCountry, &b.Locale,
		&b.Currency, &b.AmountSubtotal, &b.VATRate, &b.VATAmount, &b.AmountTotal,
		&b.Status, &b.PaymentProvider, &b.PaymentIntentID, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt, &b.RetreatTitle,
	)
	if err != nil {
		return Booking{}, err
	}
	b.BillingCountry = strings.TrimSpace(b.BillingCountry)
	b.Locale = strings.TrimSpace(b.Locale)
	b.Currency = strings.TrimSpace(b.Currency)
	return b, nil
}
