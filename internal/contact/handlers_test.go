package contact

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
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/i18n"
)

type fakeRepo struct {
	messages []Message
	markRead []string
}

func (f *fakeRepo) Create(ctx context.Context, m *Message) error {
	m.ID = "msg-1"
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, onlyUnread bool, page, limit int) ([]Message, int64, error) {
	return f.messages, int64(len(f.messages)), nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, id string) error {
	if id == "missing" {
		return ErrNotFound
	}
	f.markRead = append(f.markRead, id)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newContactRouter() (*chi.Mux, *fakeRepo, *fakeEnqueuer) {
	repo := &fakeRepo{}
	enq := &fakeEnqueuer{}
	h := &Handlers{Repo: repo, Validate: validator.New(), Enqueuer: enq, Log: zerolog.Nop()}
	admin := &AdminHandlers{Repo: repo}
	router := chi.NewRouter()
	router.Use(i18n.Middleware)
	router.Post("/contact", h.Create)
	router.Get("/admin/contact-messages", admin.List)
	router.Post("/admin/contact-messages/{id}/read", admin.MarkRead)
	return router, repo, enq
}

func TestContactCreate(t *testing.T) {
	router, repo, enq := newContactRouter()

	payload := map[string]string{
		"name":    "Lena Fischer",
		"email":   "Lena@Example.com",
		"subject": "Question about Taghazout",
		"body":    "Is the camp suitable for a first-time surfer travelling alone?",
	}
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/contact?lang=de", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, repo.messages, 1)
	assert.Equal(t, "lena@example.com", repo.messages[0].Email)
	assert.Equal(t, "de", repo.messages[0].Locale)
	require.Len(t, enq.tasks, 1)
}

func TestContactCreateHoneypot(t *testing.T) {
	router, repo, enq := newContactRouter()

	payload := map[string]string{
		"name":    "Bot",
		"email":   "bot@example.com",
		"subject": "spam",
		"body":    "buy cheap things online today",
		"website": "http://spam.example",
	}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contact", bytes.NewReader(raw)))

	// Bots get the same response as humans but nothing is stored or queued.
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, repo.messages)
	assert.Empty(t, enq.tasks)
}

func TestContactCreateValidation(t *testing.T) {
	router, repo, _ := newContactRouter()

	payload := map[string]string{"name": "A", "email": "not-an-email", "subject": "x", "body": "short"}
	raw, _ := json.Marshal(payload)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contact", bytes.NewReader(raw)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	assert.Empty(t, repo.messages)
}

func TestAdminInbox(t *testing.T) {
	router, repo, _ := newContactRouter()
	repo.messages = []Message{{ID: "m1", Name: "Lena", Email: "lena@example.com", Subject: "hi", Body: "..."}}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/contact-messages?unread=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lena@example.com")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/contact-messages/m1/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"m1"}, repo.markRead)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/contact-messages/missing/read", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
