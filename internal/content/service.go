package content

import (
	"context"
	"errors"
	"strings"

	"github.com/swellway/swellway-api/internal/common"
)

// Service wraps content reads with validation and not-found mapping.
type Service struct {
	repo         Repository
	defaultLimit int
	maxLimit     int
}

// NewService constructs a content Service.
func NewService(repo Repository, defaultLimit, maxLimit int) *Service {
	if defaultLimit < 1 {
		defaultLimit = 10
	}
	if maxLimit < 1 {
		maxLimit = 50
	}
	return &Service{repo: repo, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// PostListResult carries a post page and its total.
type PostListResult struct {
	Posts []PostSummary
	Total int64
	Page  int
	Limit int
}

// ListPosts returns published posts localized for params.Locale.
func (s *Service) ListPosts(ctx context.Context, params PostListParams) (PostListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = s.defaultLimit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	if params.Locale == "" {
		params.Locale = "en"
	}
	total, err := s.repo.CountPosts(ctx, params)
	if err != nil {
		return PostListResult{}, err
	}
	posts, err := s.repo.ListPosts(ctx, params)
	if err != nil {
		return PostListResult{}, err
	}
	return PostListResult{Posts: posts, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetPost returns a published post localized for the locale.
func (s *Service) GetPost(ctx context.Context, slug, locale string) (Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Post{}, common.BadRequest("slug is required", nil)
	}
	post, err := s.repo.GetPostBySlug(ctx, slug, locale)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, common.NotFound("post not found", err)
		}
		return Post{}, err
	}
	return post, nil
}

// GetPage returns a localized page, falling back to the English copy.
func (s *Service) GetPage(ctx context.Context, slug, locale string) (Page, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Page{}, common.BadRequest("slug is required", nil)
	}
	page, err := s.repo.GetPage(ctx, slug, locale)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Page{}, common.NotFound("page not found", err)
		}
		return Page{}, err
	}
	return page, nil
}
