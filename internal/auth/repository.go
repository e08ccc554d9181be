// Package auth authenticates admin users for the management API using HS256
// access tokens and rotating refresh sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for the service layer.
var (
	ErrUserNotFound    = errors.New("auth: user not found")
	ErrSessionNotFound = errors.New("auth: session not found")
)

// AdminUser is a management-side account.
type AdminUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a refresh-token session. Only the sha256 hash of the token is
// stored.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Repository is the persistence surface the auth service depends on.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (AdminUser, error)
	GetUserByID(ctx context.Context, id string) (AdminUser, error)
	CreateUser(ctx context.Context, name, email, passwordHash string, roles []string) (AdminUser, error)
	CreateSession(ctx context.Context, userID, tokenHash, userAgent, ip string, expiresAt time.Time) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	RotateSession(ctx context.Context, sessionID, newTokenHash string, expiresAt time.Time) error
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, name, email, password_hash, roles, created_at, updated_at`

func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (AdminUser, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM admin_users WHERE email = $1`, email)
}

func (r *PGRepository) GetUserByID(ctx context.Context, id string) (AdminUser, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM admin_users WHERE id = $1`, id)
}

func (r *PGRepository) getUser(ctx context.Context, query string, arg any) (AdminUser, error) {
	var u AdminUser
	err := r.Pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdminUser{}, ErrUserNotFound
		}
		return AdminUser{}, fmt.Errorf("get admin user: %w", err)
	}
	return u, nil
}

// CreateUser inserts an admin account. The unique email constraint surfaces as
// a pgconn error for the caller to map.
func (r *PGRepository) CreateUser(ctx context.Context, name, email, passwordHash string, roles []string) (AdminUser, error) {
	var u AdminUser
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO admin_users (name, email, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, name, email, passwordHash, roles).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return AdminUser{}, fmt.Errorf("create admin user: %w", err)
	}
	return u, nil
}

func (r *PGRepository) CreateSession(ctx context.Context, userID, tokenHash, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO admin_sessions (user_id, refresh_token_hash, user_agent, ip, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)`,
		userID, tokenHash, userAgent, ip, expiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *PGRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var s Session
	err := r.Pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at
		FROM admin_sessions
		WHERE refresh_token_hash = $1`, tokenHash).Scan(&s.ID, &s.UserID, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *PGRepository) RotateSession(ctx context.Context, sessionID, newTokenHash string, expiresAt time.Time) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE admin_sessions
		SET refresh_token_hash = $2, expires_at = $3
		WHERE id = $1`, sessionID, newTokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PGRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.Pool.Exec(ctx, `DELETE FROM admin_sessions WHERE refresh_token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *PGRepository) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.Pool.Exec(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
