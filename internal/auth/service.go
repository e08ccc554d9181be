package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/swellway/swellway-api/internal/common"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	rolesClaim = "roles"
)

// Known admin roles.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Service coordinates admin authentication and session persistence.
type Service struct {
	repo       Repository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
	clockSkew  time.Duration
	now        func() time.Time
}

// Config configures the auth service.
type Config struct {
	Repo            Repository
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
}

// User is the safe subset of an admin account returned to clients.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginResult bundles the token material returned after a successful login.
type LoginResult struct {
	User          User      `json:"user"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// RefreshResult is the outcome of a refresh rotation.
type RefreshResult struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// Claims is what a validated access token yields.
type Claims struct {
	UserID string
	Roles  []string
}

// NewService constructs a Service with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("auth: repository is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "swellway-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "swellway-admin"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		repo:       cfg.Repo,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		audience:   audience,
		clockSkew:  clockSkew,
		now:        time.Now,
	}, nil
}

// WithNow lets tests override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, err)
}

func invalidRefresh() *common.AppError {
	return common.NewAppError("UNAUTHORIZED", "invalid refresh token", http.StatusUnauthorized, nil)
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ip string) (LoginResult, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return LoginResult{}, unauthorized(nil)
	}

	user, err := s.repo.GetUserByEmail(ctx, normalized)
	if err != nil {
		// Burn comparable time on a dummy hash so user enumeration via
		// timing stays impractical.
		_, _ = argon2id.ComparePasswordAndHash(password,
			"$argon2id$v=19$m=65536,t=1,p=2$c29tZXNhbHQ$RdescudvJCsgt3ub+b+dWRWJTmaaJObG")
		return LoginResult{}, unauthorized(err)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, unauthorized(err)
	}

	accessToken, accessExpiry, err := s.signAccessToken(user.ID, user.Roles)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExpiry, err := s.createSession(ctx, user.ID, userAgent, ip)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	return LoginResult{
		User:          toUser(user),
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Refresh validates and rotates a refresh token, issuing a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return RefreshResult{}, invalidRefresh()
	}

	hashed := hashRefreshToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hashed)
	if err != nil {
		return RefreshResult{}, invalidRefresh()
	}
	if s.now().After(session.ExpiresAt) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hashed)
		return RefreshResult{}, invalidRefresh()
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hashed)
		return RefreshResult{}, invalidRefresh()
	}

	accessToken, accessExpiry, err := s.signAccessToken(user.ID, user.Roles)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("sign access token: %w", err)
	}

	newToken, err := generateToken(48)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpiry := s.now().Add(s.refreshTTL)
	if err := s.repo.RotateSession(ctx, session.ID, hashRefreshToken(newToken), refreshExpiry); err != nil {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hashed)
		return RefreshResult{}, fmt.Errorf("rotate session: %w", err)
	}

	return RefreshResult{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  newToken,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the refresh token. Unknown tokens are a silent no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashRefreshToken(token))
}

// Me fetches the current authenticated admin.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, nil)
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return toUser(user), nil
}

// EnsureUser creates an admin account, mapping a duplicate email to a
// conflict. Used by the seeder and by admin provisioning.
func (s *Service) EnsureUser(ctx context.Context, name, email, password string, roles []string) (User, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if strings.TrimSpace(name) == "" || normalized == "" {
		return User{}, common.BadRequest("name and email are required", nil)
	}
	if len(password) < 10 {
		return User{}, common.BadRequest("password must be at least 10 characters", nil)
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []string{RoleEditor}
	}
	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(name), normalized, hash, roles)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, err
	}
	return toUser(user), nil
}

// ParseAccessToken validates an access token and returns its claims. The
// algorithm is pinned to HS256; tokens signed with anything else, including
// none, are rejected before signature verification.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	if err := checkTokenAlgorithm(trimmed); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}

	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithValidate(true),
	}
	if s.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.clockSkew))
	}
	parsed, err := jwt.ParseString(trimmed, options...)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}

	claims := Claims{UserID: parsed.Subject()}
	if raw, ok := parsed.Get(rolesClaim); ok {
		if values, ok := raw.([]any); ok {
			for _, v := range values {
				if role, ok := v.(string); ok {
					claims.Roles = append(claims.Roles, role)
				}
			}
		}
	}
	return claims, nil
}

func checkTokenAlgorithm(token string) error {
	message, err := jws.ParseString(token)
	if err != nil {
		return err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return errors.New("auth: token contains no signatures")
	}
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return errors.New("auth: token missing protected headers")
		}
		if alg := headers.Algorithm(); alg != jwa.HS256 {
			return fmt.Errorf("auth: unexpected token algorithm %s", alg)
		}
	}
	return nil
}

func (s *Service) signAccessToken(userID string, roles []string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(rolesClaim, roles).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) createSession(ctx context.Context, userID, userAgent, ip string) (string, time.Time, error) {
	token, err := generateToken(48)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.refreshTTL)
	if err := s.repo.CreateSession(ctx, userID, hashRefreshToken(token), userAgent, ip, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toUser(u AdminUser) User {
	return User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
