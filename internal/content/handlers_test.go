package content

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/swellway/swellway-api/internal/i18n"
)

type fakeContentRepo struct {
	posts      []PostSummary
	post       Post
	postErr    error
	page       Page
	pageErr    error
	lastLocale string
}

func (f *fakeContentRepo) CountPosts(ctx context.Context, params PostListParams) (int64, error) {
	return int64(len(f.posts)), nil
}

func (f *fakeContentRepo) ListPosts(ctx context.Context, params PostListParams) ([]PostSummary, error) {
	f.lastLocale = params.Locale
	return f.posts, nil
}

func (f *fakeContentRepo) GetPostBySlug(ctx context.Context, slug, locale string) (Post, error) {
	f.lastLocale = locale
	if f.postErr != nil {
		return Post{}, f.postErr
	}
	return f.post, nil
}

func (f *fakeContentRepo) GetPage(ctx context.Context, slug, locale string) (Page, error) {
	f.lastLocale = locale
	if f.pageErr != nil {
		return Page{}, f.pageErr
	}
	return f.page, nil
}

type fakeAdminRepo struct {
	created   PostInput
	updatedID string
	statusID  string
	status    string
	deletedID string
	page      *Page
	createErr error
	deleteErr error
}

func (f *fakeAdminRepo) ListAdminPosts(ctx context.Context, params PostListParams) ([]AdminPost, int64, error) {
	return nil, 0, nil
}

func (f *fakeAdminRepo) CreatePost(ctx context.Context, in PostInput) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = in
	return "post-1", nil
}

func (f *fakeAdminRepo) UpdatePost(ctx context.Context, id string, in PostInput) error {
	f.updatedID = id
	return nil
}

func (f *fakeAdminRepo) SetPostStatus(ctx context.Context, id, status string, publishedAt *time.Time) error {
	f.statusID, f.status = id, status
	return nil
}

func (f *fakeAdminRepo) DeletePost(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedID = id
	return nil
}

func (f *fakeAdminRepo) UpsertPage(ctx context.Context, page Page) error {
	f.page = &page
	return nil
}

func newContentRouter(repo Repository) (*chi.Mux, *Handlers) {
	h := &Handlers{Svc: NewService(repo, 10, 50)}
	router := chi.NewRouter()
	router.Use(i18n.Middleware)
	router.Get("/posts", h.ListPosts)
	router.Get("/posts/{slug}", h.GetPost)
	router.Get("/pages/{slug}", h.GetPage)
	return router, h
}

func TestListPostsUsesRequestLocale(t *testing.T) {
	repo := &fakeContentRepo{posts: []PostSummary{{ID: "p1", Slug: "best-season-portugal", Locale: "es", Title: "La mejor temporada"}}}
	router, _ := newContentRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "es", repo.lastLocale)

	var body struct {
		Posts []PostSummary `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "best-season-portugal", body.Posts[0].Slug)
}

func TestGetPostNotFound(t *testing.T) {
	router, _ := newContentRouter(&fakeContentRepo{postErr: ErrNotFound})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestGetPageFallsBackThroughRepository(t *testing.T) {
	repo := &fakeContentRepo{page: Page{Slug: "about", Locale: "en", Title: "About Swellway", Body: "..."}}
	router, _ := newContentRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/pages/about?lang=de", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "de", repo.lastLocale)
	assert.Contains(t, rec.Body.String(), "About Swellway")
}

func newAdminRouter(repo AdminRepository) (*chi.Mux, *fakeAdminRepo) {
	fake, _ := repo.(*fakeAdminRepo)
	h := &AdminHandlers{Repo: repo, Validate: validator.New(), Locales: i18n.Codes()}
	router := chi.NewRouter()
	router.Get("/admin/posts", h.ListPosts)
	router.Post("/admin/posts", h.CreatePost)
	router.Put("/admin/posts/{id}", h.UpdatePost)
	router.Post("/admin/posts/{id}/publish", h.PublishPost)
	router.Post("/admin/posts/{id}/unpublish", h.UnpublishPost)
	router.Delete("/admin/posts/{id}", h.DeletePost)
	router.Put("/admin/pages", h.UpsertPage)
	return router, fake
}

func TestCreatePostRequiresEnglishTranslation(t *testing.T) {
	router, _ := newAdminRouter(&fakeAdminRepo{})

	payload := map[string]any{
		"slug": "swell-forecasting-101",
		"translations": []map[string]string{
			{"locale": "fr", "title": "Prévoir la houle"},
		},
	}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/posts", bytes.NewReader(raw)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "English translation")
}

func TestCreatePost(t *testing.T) {
	router, fake := newAdminRouter(&fakeAdminRepo{})

	payload := map[string]any{
		"slug": "swell-forecasting-101",
		"tags": []string{"guides"},
		"translations": []map[string]string{
			{"locale": "en", "title": "Swell Forecasting 101", "body": "Read the charts."},
			{"locale": "pt", "title": "Previsão de ondulação 101"},
		},
	}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/posts", bytes.NewReader(raw)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "swell-forecasting-101", fake.created.Slug)
	assert.Len(t, fake.created.Translations, 2)
}

func TestPublishAndUnpublishPost(t *testing.T) {
	router, fake := newAdminRouter(&fakeAdminRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/posts/p1/publish", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusPublished, fake.status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/posts/p1/unpublish", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDraft, fake.status)
}

func TestDeletePost(t *testing.T) {
	router, fake := newAdminRouter(&fakeAdminRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/posts/p1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", fake.deletedID)
}

func TestDeletePostNotFound(t *testing.T) {
	router, _ := newAdminRouter(&fakeAdminRepo{deleteErr: ErrNotFound})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/posts/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertPageRejectsUnsupportedLocale(t *testing.T) {
	router, _ := newAdminRouter(&fakeAdminRepo{})

	payload := PageInput{Slug: "about", Locale: "ja", Title: "About", Body: "body"}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/pages", bytes.NewReader(raw)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported locale")
}

func TestUpsertPage(t *testing.T) {
	router, fake := newAdminRouter(&fakeAdminRepo{})

	payload := PageInput{Slug: "about", Locale: "de", Title: "Über uns", Body: "..."}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/pages", bytes.NewReader(raw)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, fake.page)
	assert.Equal(t, "de", fake.page.Locale)
}

func TestLocaleMiddlewareDefaultsToEnglish(t *testing.T) {
	assert.Equal(t, language.English, i18n.FromContext(context.Background()))
}
