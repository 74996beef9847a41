package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/security"
	"github.com/mopd1/LuckyDeck-clean/internal/repository"
	"github.com/mopd1/LuckyDeck-clean/internal/usecase"
)

type singleUserRepo struct {
	user *domain.User
}

func (r *singleUserRepo) List(context.Context, domain.UserFilter) ([]domain.User, int64, error) {
	return nil, 0, nil
}

func (r *singleUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, repository.ErrNotFound
	}
	copied := *r.user
	return &copied, nil
}

func (r *singleUserRepo) GetByIdentifier(context.Context, string) (*domain.User, error) {
	if r.user == nil {
		return nil, repository.ErrNotFound
	}
	copied := *r.user
	return &copied, nil
}

func (r *singleUserRepo) Update(context.Context, int64, domain.UserUpdate) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (r *singleUserRepo) Delete(context.Context, int64) error { return repository.ErrNotFound }

func (r *singleUserRepo) RecordLoginFailure(context.Context, int64, int, *time.Time) error {
	return nil
}

func (r *singleUserRepo) RecordLoginSuccess(context.Context, int64, time.Time) error { return nil }

type authFixture struct {
	auth   *usecase.AuthService
	tokens *security.TokenManager
	user   domain.User
}

func newAuthFixture(t *testing.T, adminRole string) authFixture {
	t.Helper()

	tokens, err := security.NewTokenManager("access-secret", "refresh-secret", "test", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	user := domain.User{
		ID:       9,
		Username: "moderator",
		Email:    "moderator@example.com",
		IsActive: true,
	}
	if adminRole != "" {
		role := adminRole
		user.AdminRole = &role
		user.IsAdmin = true
	}

	repo := &singleUserRepo{user: &user}
	auth := usecase.NewAuthService(repo, tokens, security.NewHasher(4), zaptest.NewLogger(t))

	return authFixture{auth: auth, tokens: tokens, user: user}
}

func protectedRouter(fixture authFixture, minimum domain.Role) *gin.Engine {
	router := gin.New()
	group := router.Group("/admin")
	group.Use(RequireAuth(fixture.auth))
	group.Use(RequireRole(minimum))
	group.GET("/ping", func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor_id": actor.ID, "role": actor.Role.String()})
	})
	return router
}

func TestRequireAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fixture := newAuthFixture(t, "admin")
	router := protectedRouter(fixture, domain.RoleAdmin)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not.a.token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if got := rr.Header().Get("WWW-Authenticate"); got == "" {
				t.Fatal("expected WWW-Authenticate challenge header")
			}
		})
	}
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fixture := newAuthFixture(t, "admin")
	router := protectedRouter(fixture, domain.RoleAdmin)

	token, err := fixture.tokens.IssueAccessToken(fixture.user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireAuthExpiredTokenGetsDistinctCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	fixture := newAuthFixture(t, "admin")
	fixture.tokens.WithClock(func() time.Time { return issuedAt })

	token, err := fixture.tokens.IssueAccessToken(fixture.user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	fixture.tokens.WithClock(func() time.Time { return issuedAt.Add(2 * time.Hour) })

	router := protectedRouter(fixture, domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "token_expired" {
		t.Fatalf("expected code token_expired, got %q", body.Code)
	}
}

func TestRequireRoleOrdering(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		adminRole string
		minimum   domain.Role
		wantCode  int
	}{
		{name: "plain user rejected from admin routes", adminRole: "", minimum: domain.RoleAdmin, wantCode: http.StatusForbidden},
		{name: "admin allowed on admin routes", adminRole: "admin", minimum: domain.RoleAdmin, wantCode: http.StatusOK},
		{name: "admin rejected from superadmin routes", adminRole: "admin", minimum: domain.RoleSuperadmin, wantCode: http.StatusForbidden},
		{name: "superadmin allowed on admin routes", adminRole: "superadmin", minimum: domain.RoleAdmin, wantCode: http.StatusOK},
		{name: "superadmin allowed on superadmin routes", adminRole: "superadmin", minimum: domain.RoleSuperadmin, wantCode: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fixture := newAuthFixture(t, tc.adminRole)
			router := protectedRouter(fixture, tc.minimum)

			token, err := fixture.tokens.IssueAccessToken(fixture.user)
			if err != nil {
				t.Fatalf("IssueAccessToken: %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}
