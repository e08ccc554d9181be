package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a post or page does not exist.
var ErrNotFound = errors.New("content: not found")

// Repository is the persistence surface for the public content endpoints.
type Repository interface {
	CountPosts(ctx context.Context, params PostListParams) (int64, error)
	ListPosts(ctx context.Context, params PostListParams) ([]PostSummary, error)
	GetPostBySlug(ctx context.Context, slug, locale string) (Post, error)
	GetPage(ctx context.Context, slug, locale string) (Page, error)
}

// AdminRepository is the write-side surface for the management endpoints.
type AdminRepository interface {
	ListAdminPosts(ctx context.Context, params PostListParams) ([]AdminPost, int64, error)
	CreatePost(ctx context.Context, in PostInput) (string, error)
	UpdatePost(ctx context.Context, id string, in PostInput) error
	SetPostStatus(ctx context.Context, id, status string, publishedAt *time.Time) error
	DeletePost(ctx context.Context, id string) error
	UpsertPage(ctx context.Context, page Page) error
}

// PGRepository implements both surfaces over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

// Translation resolution joins the requested locale and falls back to English
// when the locale row is missing.
const translationJoin = `
	LEFT JOIN post_translations tr ON tr.post_id = p.id AND tr.locale = $1
	LEFT JOIN post_translations en ON en.post_id = p.id AND en.locale = 'en'`

// CountPosts returns the number of published posts matching the filters.
func (r *PGRepository) CountPosts(ctx context.Context, params PostListParams) (int64, error) {
	where, args := postFilters(params)
	var total int64
	err := r.Pool.QueryRow(ctx, `
		SELECT count(*)
		FROM posts p`+translationJoin+`
		`+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return total, nil
}

// ListPosts returns a page of published posts localized for the given locale.
func (r *PGRepository) ListPosts(ctx context.Context, params PostListParams) ([]PostSummary, error) {
	where, args := postFilters(params)
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	query := fmt.Sprintf(`
		SELECT p.id, p.slug, p.tags, p.cover_image, p.published_at,
		       COALESCE(tr.locale, en.locale, 'en'),
		       COALESCE(tr.title, en.title, ''),
		       COALESCE(tr.excerpt, en.excerpt, '')
		FROM posts p%s
		%s
		ORDER BY p.published_at DESC NULLS LAST
		LIMIT $%d OFFSET $%d`, translationJoin, where, len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []PostSummary
	for rows.Next() {
		var s PostSummary
		var excerpt string
		if err := rows.Scan(&s.ID, &s.Slug, &s.Tags, &s.CoverImage, &s.PublishedAt,
			&s.Locale, &s.Title, &excerpt); err != nil {
			return nil, err
		}
		s.Locale = strings.TrimSpace(s.Locale)
		s.Excerpt = excerpt
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetPostBySlug loads a published post localized for the given locale.
func (r *PGRepository) GetPostBySlug(ctx context.Context, slug, locale string) (Post, error) {
	var p Post
	err := r.Pool.QueryRow(ctx, `
		SELECT p.id, p.slug, p.tags, p.cover_image, p.published_at, p.updated_at,
		       COALESCE(tr.locale, en.locale, 'en'),
		       COALESCE(tr.title, en.title, ''),
		       COALESCE(tr.excerpt, en.excerpt, ''),
		       COALESCE(tr.body, en.body, '')
		FROM posts p`+translationJoin+`
		WHERE p.slug = $2 AND p.status = 'published'`, locale, slug).Scan(
		&p.ID, &p.Slug, &p.Tags, &p.CoverImage, &p.PublishedAt, &p.UpdatedAt,
		&p.Locale, &p.Title, &p.Excerpt, &p.Body,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("get post by slug: %w", err)
	}
	p.Locale = strings.TrimSpace(p.Locale)
	return p, nil
}

// GetPage loads a page for the locale, falling back to the English copy.
func (r *PGRepository) GetPage(ctx context.Context, slug, locale string) (Page, error) {
	var page Page
	err := r.Pool.QueryRow(ctx, `
		SELECT slug, locale, title, meta_description, body, updated_at
		FROM pages
		WHERE slug = $1 AND locale IN ($2, 'en')
		ORDER BY CASE WHEN locale = $2 THEN 0 ELSE 1 END
		LIMIT 1`, slug, locale).Scan(
		&page.Slug, &page.Locale, &page.Title, &page.MetaDescription, &page.Body, &page.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	page.Locale = strings.TrimSpace(page.Locale)
	return page, nil
}

// ListAdminPosts lists posts for the management UI, any status.
func (r *PGRepository) ListAdminPosts(ctx context.Context, params PostListParams) ([]AdminPost, int64, error) {
	clauses := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if params.Status != "" {
		clauses = append(clauses, "p.status = "+arg(params.Status))
	}
	if params.Tag != "" {
		clauses = append(clauses, arg(params.Tag)+" = ANY(p.tags)")
	}
	if params.Query != "" {
		clauses = append(clauses, "p.slug ILIKE "+arg("%"+params.Query+"%"))
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := r.Pool.QueryRow(ctx, "SELECT count(*) FROM posts p "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin posts: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	rows, err := r.Pool.Query(ctx, fmt.Sprintf(`
		SELECT p.id, p.slug, p.status, p.tags, p.cover_image, p.published_at,
		       p.created_at, p.updated_at
		FROM posts p
		%s
		ORDER BY p.updated_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admin posts: %w", err)
	}
	defer rows.Close()

	var out []AdminPost
	for rows.Next() {
		var p AdminPost
		if err := rows.Scan(&p.ID, &p.Slug, &p.Status, &p.Tags, &p.CoverImage,
			&p.PublishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		translations, err := r.listTranslations(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Translations = translations
	}
	return out, total, nil
}

func (r *PGRepository) listTranslations(ctx context.Context, postID string) ([]Translation, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT locale, title, excerpt, body
		FROM post_translations
		WHERE post_id = $1
		ORDER BY locale`, postID)
	if err != nil {
		return nil, fmt.Errorf("list translations: %w", err)
	}
	defer rows.Close()

	var out []Translation
	for rows.Next() {
		var tr Translation
		if err := rows.Scan(&tr.Locale, &tr.Title, &tr.Excerpt, &tr.Body); err != nil {
			return nil, err
		}
		tr.Locale = strings.TrimSpace(tr.Locale)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// CreatePost inserts a post with its translations in one transaction.
func (r *PGRepository) CreatePost(ctx context.Context, in PostInput) (string, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO posts (slug, tags, cover_image)
		VALUES ($1, $2, $3)
		RETURNING id`, in.Slug, in.Tags, in.CoverImage).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	if err := upsertTranslations(ctx, tx, id, in.Translations); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// UpdatePost replaces a post's fields and translations.
func (r *PGRepository) UpdatePost(ctx context.Context, id string, in PostInput) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE posts
		SET slug = $2, tags = $3, cover_image = $4, updated_at = now()
		WHERE id = $1`, id, in.Slug, in.Tags, in.CoverImage)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := upsertTranslations(ctx, tx, id, in.Translations); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertTranslations(ctx context.Context, tx pgx.Tx, postID string, translations []Translation) error {
	for _, tr := range translations {
		_, err := tx.Exec(ctx, `
			INSERT INTO post_translations (post_id, locale, title, excerpt, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (post_id, locale)
			DO UPDATE SET title = EXCLUDED.title, excerpt = EXCLUDED.excerpt, body = EXCLUDED.body`,
			postID, tr.Locale, tr.Title, tr.Excerpt, tr.Body)
		if err != nil {
			return fmt.Errorf("upsert translation %s: %w", tr.Locale, err)
		}
	}
	return nil
}

// SetPostStatus publishes or unpublishes a post.
func (r *PGRepository) SetPostStatus(ctx context.Context, id, status string, publishedAt *time.Time) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE posts
		SET status = $2, published_at = $3, updated_at = now()
		WHERE id = $1`, id, status, publishedAt)
	if err != nil {
		return fmt.Errorf("set post status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post; translations cascade.
func (r *PGRepository) DeletePost(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPage creates or replaces a localized page.
func (r *PGRepository) UpsertPage(ctx context.Context, page Page) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO pages (slug, locale, title, meta_description, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (slug, locale)
		DO UPDATE SET title = EXCLUDED.title, meta_description = EXCLUDED.meta_description,
		              body = EXCLUDED.body, updated_at = now()`,
		page.Slug, page.Locale, page.Title, page.MetaDescription, page.Body)
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

// postFilters builds the WHERE clause for public post queries. $1 is reserved
// for the locale used by translationJoin.
func postFilters(params PostListParams) (string, []any) {
	clauses := []string{"p.status = 'published'"}
	args := []any{params.Locale}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if params.Tag != "" {
		clauses = append(clauses, arg(params.Tag)+" = ANY(p.tags)")
	}
	if params.Query != "" {
		p := arg("%" + params.Query + "%")
		clauses = append(clauses, fmt.Sprintf("(COALESCE(tr.title, en.title, '') ILIKE %s OR p.slug ILIKE %s)", p, p))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
