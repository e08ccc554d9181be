// Package contact receives enquiries from the public contact form and exposes
// them to the admin inbox.
package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a message id does not exist.
var ErrNotFound = errors.New("contact: not found")

// Message is a stored contact enquiry.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Locale    string    `json:"locale"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Input is the public form payload.
type Input struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=2,max=200"`
	Body    string `json:"body" validate:"required,min=10,max=5000"`
	// Honeypot field: bots fill it, humans never see it.
	Website string `json:"website" validate:"omitempty,max=0"`
}

// Repository is the persistence surface for contact messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	List(ctx context.Context, onlyUnread bool, page, limit int) ([]Message, int64, error)
	MarkRead(ctx context.Context, id string) error
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

func (r *PGRepository) Create(ctx context.Context, m *Message) error {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, subject, body, locale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		m.Name, m.Email, m.Subject, m.Body, m.Locale).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create contact message: %w", err)
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, onlyUnread bool, page, limit int) ([]Message, int64, error) {
	where := ""
	if onlyUnread {
		where = "WHERE NOT read"
	}
	var total int64
	if err := r.Pool.QueryRow(ctx, "SELECT count(*) FROM contact_messages "+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}

	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`
		SELECT id, name, email, subject, body, locale, read, created_at
		FROM contact_messages
		%s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, where), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.Locale, &m.Read, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE contact_messages SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("mark contact message read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
