package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
)

func newGuardedRouter(t *testing.T, svc *service.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, GetAuthUser(c))
	})
	r.GET("/admin", AuthMiddleware(svc), RequireRoles(model.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newGuardedRouter(t, svc)

	w := get(r, "/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing access token") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	svc, _ := newTestAuth(t, "15m")
	r := newGuardedRouter(t, svc)

	w := get(r, "/me", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "TOKEN_EXPIRED") {
		t.Fatalf("invalid token must not be reported as expired: %s", w.Body.String())
	}
}

func TestAuthMiddlewareExpiredTokenIsDistinct(t *testing.T) {
	svc, users := newTestAuth(t, "0s")
	user, err := users.CreateUser(context.Background(), "alice", "alice@x.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, _, err := svc.IssueAccessToken(user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	r := newGuardedRouter(t, svc)
	w := get(r, "/me", token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "TOKEN_EXPIRED") {
		t.Fatalf("expected TOKEN_EXPIRED marker, got: %s", w.Body.String())
	}
}

func TestAuthMiddlewareDeletedSubject(t *testing.T) {
	svc, users := newTestAuth(t, "15m")
	user, err := users.CreateUser(context.Background(), "alice", "alice@x.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, _, err := svc.IssueAccessToken(user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	users.mu.Lock()
	delete(users.users, user.ID)
	users.mu.Unlock()

	r := newGuardedRouter(t, svc)
	w := get(r, "/me", token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	svc, users := newTestAuth(t, "15m")
	r := newGuardedRouter(t, svc)

	user, err := users.CreateUser(context.Background(), "alice", "alice@x.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	admin, err := users.CreateUser(context.Background(), "root", "root@x.com", "hash", model.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	userToken, _, _ := svc.IssueAccessToken(user.ID)
	adminToken, _, _ := svc.IssueAccessToken(admin.ID)

	if w := get(r, "/admin", userToken); w.Code != http.StatusForbidden {
		t.Fatalf("user on admin route: expected 403, got %d", w.Code)
	}
	if w := get(r, "/admin", adminToken); w.Code != http.StatusOK {
		t.Fatalf("admin on admin route: expected 200, got %d", w.Code)
	}
}
