package retreat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/swellway/swellway-api/internal/common"
)

// Service orchestrates catalogue queries, DTO assembly, and caching.
type Service struct {
	repo         Repository
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo         Repository
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("retreat: repository is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{repo: cfg.Repo, cache: cfg.Cache, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Destination = strings.TrimSpace(values.Get("destination"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return params, badRequest("minPrice", "minPrice must be a valid amount", err)
		}
		params.MinPrice = &parsed
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return params, badRequest("maxPrice", "maxPrice must be a valid amount", err)
		}
		params.MaxPrice = &parsed
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("month")); v != "" {
		if !monthPattern.MatchString(v) {
			return params, badRequest("month", "month must use the YYYY-MM format", nil)
		}
		params.Month = v
	}

	switch skill := strings.TrimSpace(values.Get("skill")); skill {
	case "", "beginner", "intermediate", "advanced":
		params.Skill = skill
	default:
		return params, badRequest("skill", "skill must be one of beginner, intermediate, advanced", nil)
	}

	switch sort := strings.TrimSpace(values.Get("sort")); sort {
	case "", "price_asc", "price_desc", "newest":
		params.Sort = sort
	default:
		return params, badRequest("sort", "sort must be one of price_asc, price_desc, newest", nil)
	}
	return params, nil
}

// Destinations returns all destinations.
func (s *Service) Destinations(ctx context.Context) ([]Destination, error) {
	return s.repo.ListDestinations(ctx)
}

type cachedList struct {
	Items []ListItem `json:"items"`
	Total int64      `json:"total"`
}

// List returns a filtered retreat page, serving unfiltered first pages from cache.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	key, cacheable := listCacheKey(params)
	if cacheable {
		var cached cachedList
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	total, err := s.repo.CountRetreats(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	items, err := s.repo.ListRetreats(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return result, nil
}

// Get returns the full retreat detail, cached by slug.
func (s *Service) Get(ctx context.Context, slug string) (Detail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Detail{}, badRequest("slug", "slug is required", nil)
	}
	key := "retreat:detail:" + slug
	var cached Detail
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	detail, err := s.repo.GetRetreatBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, common.NotFound("retreat not found", err)
		}
		return Detail{}, err
	}
	_ = s.cache.SetJSON(ctx, key, detail)
	return detail, nil
}

// Departures returns upcoming departures for the retreat with the given slug.
func (s *Service) Departures(ctx context.Context, slug string) ([]Departure, error) {
	detail, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	return detail.Departures, nil
}

// InvalidateCache drops cached catalogue payloads after admin writes.
func (s *Service) InvalidateCache(ctx context.Context) {
	_ = s.cache.Invalidate(ctx)
}

// Only unfiltered, low-page listings are worth caching; filtered queries have
// too much key cardinality.
func listCacheKey(params ListParams) (string, bool) {
	if params.Query != "" || params.Destination != "" || params.MinPrice != nil ||
		params.MaxPrice != nil || params.Month != "" || params.Skill != "" || params.Page > 3 {
		return "", false
	}
	return fmt.Sprintf("retreat:list:%s:%d:%d", params.Sort, params.Page, params.Limit), true
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]string{"field": field},
	}
}
