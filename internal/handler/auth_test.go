package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
	"go.uber.org/zap"
)

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func (f *memUserStore) CreateUser(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user := &model.User{ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (f *memUserStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *memUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *memUserStore) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.RefreshToken
}

func (f *memLedger) InsertRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows[f.nextID] = &model.RefreshToken{ID: f.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (f *memLedger) GetLiveRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Token == token && r.Live(time.Now()) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *memLedger) RevokeRefreshToken(ctx context.Context, tokenID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[tokenID]
	if !ok || r.Revoked {
		return false, nil
	}
	now := time.Now()
	r.Revoked = true
	r.RevokedAt = &now
	return true, nil
}

func (f *memLedger) RevokeRefreshTokenByValue(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Token == token && !r.Revoked {
			now := time.Now()
			r.Revoked = true
			r.RevokedAt = &now
		}
	}
	return nil
}

func (f *memLedger) RevokeAllRefreshTokensForUser(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && !r.Revoked {
			now := time.Now()
			r.Revoked = true
			r.RevokedAt = &now
		}
	}
	return nil
}

func newTestAuth(t *testing.T, accessTTL string) (*service.AuthService, *memUserStore) {
	t.Helper()
	users := &memUserStore{users: map[int64]*model.User{}}
	ledger := &memLedger{rows: map[int64]*model.RefreshToken{}}
	svc, err := service.NewAuthService(users, ledger, config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  accessTTL,
		JWTRefreshTTL: "168h",
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, users
}

func newAuthRouter(t *testing.T, svc *service.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(svc, zap.NewNop())
	auth := r.Group("/api/v1/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/profile", AuthMiddleware(svc), h.Profile)
	return r
}

func doJSON(r *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newAuthRouter(t, svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"al","email":"not-an-email","password":""}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newAuthRouter(t, svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"alice@x.com","password":"Passw0rd"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var registered model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &registered); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if registered.User == nil || registered.User.Role != model.RoleUser {
		t.Fatalf("expected role user, got %+v", registered.User)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"alice@x.com","password":"Passw0rd"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var loggedIn model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &loggedIn); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	// Login revoked the registration chain.
	body := fmt.Sprintf(`{"refreshToken":%q}`, registered.RefreshToken)
	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("stale refresh: expected 401, got %d", w.Code)
	}

	// The login chain rotates.
	body = fmt.Sprintf(`{"refreshToken":%q}`, loggedIn.RefreshToken)
	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", w.Code)
	}

	// Rotated tokens are single-use.
	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", w.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newAuthRouter(t, svc)

	doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"alice@x.com","password":"Passw0rd"}`, "")

	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", `{"email":"alice@x.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogoutThenRefresh(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newAuthRouter(t, svc)

	w := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"alice@x.com","password":"Passw0rd"}`, "")
	var registered model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &registered); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	body := fmt.Sprintf(`{"refreshToken":%q}`, registered.RefreshToken)
	w = doJSON(r, http.MethodPost, "/api/v1/auth/logout", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/auth/refresh", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", w.Code)
	}

	// Logout on an unknown token is still a success.
	w = doJSON(r, http.MethodPost, "/api/v1/auth/logout", `{"refreshToken":"unknown"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout unknown: expected 200, got %d", w.Code)
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newAuthRouter(t, svc)

	w := doJSON(r, http.MethodGet, "/api/v1/auth/profile", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	reg := doJSON(r, http.MethodPost, "/api/v1/auth/register", `{"username":"alice","email":"alice@x.com","password":"Passw0rd"}`, "")
	var registered model.AuthResponse
	if err := json.Unmarshal(reg.Body.Bytes(), &registered); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doJSON(r, http.MethodGet, "/api/v1/auth/profile", "", registered.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var profile model.UserProfile
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if profile.Username != "alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}
