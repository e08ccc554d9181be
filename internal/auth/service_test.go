package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/common"
)

type memRepo struct {
	users    map[string]AdminUser
	sessions map[string]Session
	nextID   int
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]AdminUser{}, sessions: map[string]Session{}}
}

func (m *memRepo) addUser(t *testing.T, name, email, password string, roles []string) AdminUser {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	m.nextID++
	u := AdminUser{
		ID:           string(rune('a' + m.nextID)),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u
}

func (m *memRepo) GetUserByEmail(ctx context.Context, email string) (AdminUser, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return AdminUser{}, ErrUserNotFound
}

func (m *memRepo) GetUserByID(ctx context.Context, id string) (AdminUser, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return AdminUser{}, ErrUserNotFound
}

func (m *memRepo) CreateUser(ctx context.Context, name, email, passwordHash string, roles []string) (AdminUser, error) {
	m.nextID++
	u := AdminUser{ID: string(rune('a' + m.nextID)), Name: name, Email: email, PasswordHash: passwordHash, Roles: roles}
	m.users[u.ID] = u
	return u, nil
}

func (m *memRepo) CreateSession(ctx context.Context, userID, tokenHash, userAgent, ip string, expiresAt time.Time) error {
	m.nextID++
	m.sessions[tokenHash] = Session{ID: string(rune('A' + m.nextID)), UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *memRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	if s, ok := m.sessions[tokenHash]; ok {
		return s, nil
	}
	return Session{}, ErrSessionNotFound
}

func (m *memRepo) RotateSession(ctx context.Context, sessionID, newTokenHash string, expiresAt time.Time) error {
	for hash, s := range m.sessions {
		if s.ID == sessionID {
			delete(m.sessions, hash)
			s.ExpiresAt = expiresAt
			m.sessions[newTokenHash] = s
			return nil
		}
	}
	return ErrSessionNotFound
}

func (m *memRepo) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memRepo) DeleteSessionsByUser(ctx context.Context, userID string) error {
	for hash, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, hash)
		}
	}
	return nil
}

func newAuthService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(Config{Repo: repo, Secret: "test-secret-test-secret-32bytes!"})
	require.NoError(t, err)
	return svc
}

func TestLoginAndParseToken(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", []string{RoleAdmin})
	svc := newAuthService(t, repo)

	result, err := svc.Login(context.Background(), "Maya@Swellway.test", "correct horse battery", "ua", "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, []string{RoleAdmin}, claims.Roles)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", []string{RoleAdmin})
	svc := newAuthService(t, repo)

	_, err := svc.Login(context.Background(), "maya@swellway.test", "wrong", "", "")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	_, err = svc.Login(context.Background(), "nobody@swellway.test", "whatever", "", "")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", []string{RoleEditor})
	svc := newAuthService(t, repo)

	login, err := svc.Login(context.Background(), "maya@swellway.test", "correct horse battery", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token must be dead.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	// The rotated token keeps working.
	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", nil)
	svc := newAuthService(t, repo)

	login, err := svc.Login(context.Background(), "maya@swellway.test", "correct horse battery", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(defaultRefreshTTL + time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", nil)
	svc := newAuthService(t, repo)

	login, err := svc.Login(context.Background(), "maya@swellway.test", "correct horse battery", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(time.Hour) })
	_, err = svc.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsForeignSecret(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Maya", "maya@swellway.test", "correct horse battery", nil)
	svc := newAuthService(t, repo)
	other, err := NewService(Config{Repo: repo, Secret: "another-secret-entirely-32bytes!"})
	require.NoError(t, err)

	login, err := svc.Login(context.Background(), "maya@swellway.test", "correct horse battery", "", "")
	require.NoError(t, err)

	_, err = other.ParseAccessToken(login.AccessToken)
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(t, "Edith", "edith@swellway.test", "editor password!", []string{RoleEditor})
	svc := newAuthService(t, repo)
	mw := Middleware{Service: svc}

	protected := mw.RequireAuth(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	editorOK := mw.RequireAuth(RequireRole(RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	login, err := svc.Login(context.Background(), "edith@swellway.test", "editor password!", "", "")
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("editor lacks admin role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("editor role passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+login.AccessToken)
		rec := httptest.NewRecorder()
		editorOK.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
