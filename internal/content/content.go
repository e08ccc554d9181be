// Package content serves the editorial surface: localized blog posts and
// static marketing pages, with an authenticated management side.
package content

import "time"

// Post statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Translation is the localized portion of a post.
type Translation struct {
	Locale  string `json:"locale"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt,omitempty"`
	Body    string `json:"body,omitempty"`
}

// PostSummary is a post entry in listing responses. The translation fields are
// resolved for the request locale, falling back to English.
type PostSummary struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Locale      string     `json:"locale"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Tags        []string   `json:"tags"`
	CoverImage  *string    `json:"coverImage,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Post is the full post payload for the detail endpoint.
type Post struct {
	PostSummary
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AdminPost is the management view of a post, carrying every translation.
type AdminPost struct {
	ID           string        `json:"id"`
	Slug         string        `json:"slug"`
	Status       string        `json:"status"`
	Tags         []string      `json:"tags"`
	CoverImage   *string       `json:"coverImage,omitempty"`
	PublishedAt  *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Translations []Translation `json:"translations"`
}

// Page is a localized static page keyed by slug and locale.
type Page struct {
	Slug            string    `json:"slug"`
	Locale          string    `json:"locale"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"metaDescription,omitempty"`
	Body            string    `json:"body"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PostListParams captures filters for post listings.
type PostListParams struct {
	Locale string
	Tag    string
	Query  string
	Status string // admin listings only; public listings are always published
	Page   int
	Limit  int
}
