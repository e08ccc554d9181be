// Package site serves the crawl surface: sitemap.xml with hreflang
// alternates, robots.txt, and localized site metadata.
package site

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/swellway/swellway-api/internal/i18n"
)

const sitemapCacheKey = "site:sitemap"

// Entry is a public page that belongs in the sitemap.
type Entry struct {
	Path      string
	UpdatedAt time.Time
}

// Repository lists the slugs of indexable content.
type Repository interface {
	ListRetreatEntries(ctx context.Context) ([]Entry, error)
	ListPostEntries(ctx context.Context) ([]Entry, error)
	ListPageEntries(ctx context.Context) ([]Entry, error)
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	Pool *pgxpool.Pool
}

func (r *PGRepository) ListRetreatEntries(ctx context.Context) ([]Entry, error) {
	return r.listEntries(ctx, `
		SELECT '/retreats/' || slug, updated_at
		FROM retreats
		WHERE published
		ORDER BY slug`)
}

func (r *PGRepository) ListPostEntries(ctx context.Context) ([]Entry, error) {
	return r.listEntries(ctx, `
		SELECT '/posts/' || slug, updated_at
		FROM posts
		WHERE status = 'published'
		ORDER BY slug`)
}

func (r *PGRepository) ListPageEntries(ctx context.Context) ([]Entry, error) {
	return r.listEntries(ctx, `
		SELECT '/pages/' || slug, max(updated_at)
		FROM pages
		GROUP BY slug
		ORDER BY slug`)
}

func (r *PGRepository) listEntries(ctx context.Context, query string) ([]Entry, error) {
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sitemap entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Service generates and caches the sitemap.
type Service struct {
	Repo    Repository
	Redis   *redis.Client
	TTL     time.Duration
	BaseURL string
}

type xmlLink struct {
	XMLName  xml.Name `xml:"xhtml:link"`
	Rel      string   `xml:"rel,attr"`
	Hreflang string   `xml:"hreflang,attr"`
	Href     string   `xml:"href,attr"`
}

type xmlURL struct {
	XMLName xml.Name  `xml:"url"`
	Loc     string    `xml:"loc"`
	LastMod string    `xml:"lastmod,omitempty"`
	Links   []xmlLink `xml:"xhtml:link"`
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	XHTML   string   `xml:"xmlns:xhtml,attr"`
	URLs    []xmlURL `xml:"url"`
}

// staticPaths are always present regardless of database content.
var staticPaths = []string{"/", "/retreats", "/destinations", "/posts", "/contact"}

// Sitemap returns the cached sitemap XML, generating it on a miss.
func (s *Service) Sitemap(ctx context.Context) ([]byte, error) {
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, sitemapCacheKey).Bytes(); err == nil {
			return cached, nil
		}
	}
	return s.generateAndCache(ctx)
}

// Warm regenerates the sitemap cache ahead of demand. Used by the periodic
// worker task and by admin content writes.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.generateAndCache(ctx)
	return err
}

func (s *Service) generateAndCache(ctx context.Context) ([]byte, error) {
	raw, err := s.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if s.Redis != nil {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		_ = s.Redis.Set(ctx, sitemapCacheKey, raw, ttl).Err()
	}
	return raw, nil
}

// Generate builds the sitemap XML from the current content. Every URL carries
// one hreflang alternate per supported locale plus x-default.
func (s *Service) Generate(ctx context.Context) ([]byte, error) {
	var entries []Entry
	for _, path := range staticPaths {
		entries = append(entries, Entry{Path: path})
	}
	for _, list := range []func(context.Context) ([]Entry, error){
		s.Repo.ListRetreatEntries, s.Repo.ListPostEntries, s.Repo.ListPageEntries,
	} {
		more, err := list(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, more...)
	}

	base := strings.TrimRight(s.BaseURL, "/")
	set := xmlURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
	}
	for _, e := range entries {
		u := xmlURL{Loc: base + e.Path}
		if !e.UpdatedAt.IsZero() {
			u.LastMod = e.UpdatedAt.UTC().Format("2006-01-02")
		}
		for _, code := range i18n.Codes() {
			u.Links = append(u.Links, xmlLink{
				Rel:      "alternate",
				Hreflang: code,
				Href:     base + e.Path + "?lang=" + code,
			})
		}
		u.Links = append(u.Links, xmlLink{
			Rel:      "alternate",
			Hreflang: "x-default",
			Href:     base + e.Path,
		})
		set.URLs = append(set.URLs, u)
	}

	raw, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), raw...), nil
}
