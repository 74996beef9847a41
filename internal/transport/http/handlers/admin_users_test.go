package handlers

import (
	"bytes"
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
	"github.com/mopd1/LuckyDeck-clean/internal/transport/http/middleware"
	"github.com/mopd1/LuckyDeck-clean/internal/usecase"
)

type stubUserRepo struct {
	users map[int64]*domain.User

	listUsers      []domain.User
	listTotal      int64
	capturedFilter *domain.UserFilter
	lastUpdate     *domain.UserUpdate
	deletedIDs     []int64
	updateErr      error
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[int64]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubUserRepo) List(_ context.Context, filter domain.UserFilter) ([]domain.User, int64, error) {
	s.capturedFilter = &filter
	return s.listUsers, s.listTotal, nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	for _, user := range s.users {
		if user.Username == identifier || user.Email == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepo) Update(_ context.Context, id int64, update domain.UserUpdate) (*domain.User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.lastUpdate = &update
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Chips != nil {
		user.Chips = *update.Chips
	}
	if update.AdminRole != nil {
		role := *update.AdminRole
		user.AdminRole = &role
		user.IsAdmin = true
	} else if update.ClearRole {
		user.AdminRole = nil
		user.IsAdmin = false
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

func (s *stubUserRepo) RecordLoginFailure(context.Context, int64, int, *time.Time) error { return nil }
func (s *stubUserRepo) RecordLoginSuccess(context.Context, int64, time.Time) error      { return nil }

func claimsInjector(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &security.AccessTokenClaims{
			UserID: 100,
			Email:  "actor@example.com",
			Role:   role,
		})
		c.Next()
	}
}

func usersTestRouter(t *testing.T, repo *stubUserRepo, actorRole string) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	svc := usecase.NewUserService(repo, security.NewHasher(4), security.DefaultPasswordValidator(), nil, zaptest.NewLogger(t))
	handler := NewAdminUsersHandler(svc)

	router := gin.New()
	group := router.Group("/api/v1/admin")
	group.Use(claimsInjector(actorRole))
	handler.RegisterRoutes(group)

	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListUsersAppliesQueryFilters(t *testing.T) {
	repo := newStubUserRepo()
	repo.listUsers = []domain.User{
		{ID: 1, Username: "alice77", Email: "alice@example.com", Chips: 1200, IsActive: true, CreatedAt: time.Now().UTC()},
	}
	repo.listTotal = 72

	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodGet,
		"/api/v1/admin/users?username=alice&is_active=true&min_chips=1000&page=2&sort_by=chips&sort_order=asc", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	filter := repo.capturedFilter
	if filter == nil {
		t.Fatal("expected the repository to receive a filter")
	}
	if filter.Username != "alice" {
		t.Fatalf("expected username filter alice, got %q", filter.Username)
	}
	if filter.IsActive == nil || !*filter.IsActive {
		t.Fatal("expected is_active filter true")
	}
	if filter.Chips.Min == nil || *filter.Chips.Min != 1000 {
		t.Fatal("expected min_chips filter 1000")
	}
	if filter.Page != 2 {
		t.Fatalf("expected page 2, got %d", filter.Page)
	}
	if filter.SortBy != domain.SortByChips || filter.Direction != domain.SortAsc {
		t.Fatalf("expected chips ASC ordering, got %s %s", filter.SortBy, filter.Direction)
	}

	var response UserListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Users) != 1 || response.Users[0].Username != "alice77" {
		t.Fatalf("unexpected users payload %+v", response.Users)
	}
	if response.Pagination.TotalItems != 72 || response.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected pagination %+v", response.Pagination)
	}
}

func TestListUsersBooleanLiteralParsing(t *testing.T) {
	repo := newStubUserRepo()
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodGet, "/api/v1/admin/users?is_admin=1&account_locked=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	filter := repo.capturedFilter
	if filter.IsAdmin == nil || *filter.IsAdmin {
		t.Fatal(`expected is_admin=1 to parse as false; only the literal "true" is truthy`)
	}
	if filter.AccountLocked == nil || !*filter.AccountLocked {
		t.Fatal("expected account_locked=true to parse as true")
	}
}

func TestListUsersRejectsMalformedParameters(t *testing.T) {
	router := usersTestRouter(t, newStubUserRepo(), "admin")

	cases := []struct {
		name  string
		query string
	}{
		{name: "non-numeric page", query: "page=abc"},
		{name: "zero page", query: "page=0"},
		{name: "negative page", query: "page=-1"},
		{name: "non-numeric min_chips", query: "min_chips=lots"},
		{name: "non-numeric max_gems", query: "max_gems=many"},
		{name: "bad start_date", query: "start_date=not-a-date"},
		{name: "bad last_login_end", query: "last_login_end=tomorrow"},
		{name: "unsortable column", query: "sort_by=password_hash"},
		{name: "injection attempt", query: "sort_by=created_at%3BDROP+TABLE+users"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := performJSON(t, router, http.MethodGet, "/api/v1/admin/users?"+tc.query, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestListUsersAcceptsDateOnlyAndRFC3339(t *testing.T) {
	repo := newStubUserRepo()
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodGet,
		"/api/v1/admin/users?start_date=2025-01-01&end_date=2025-06-01T12:00:00Z", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	filter := repo.capturedFilter
	if filter.CreatedAt.Start == nil || filter.CreatedAt.End == nil {
		t.Fatal("expected both created_at bounds to be set")
	}
	if filter.CreatedAt.Start.Format("2006-01-02") != "2025-01-01" {
		t.Fatalf("unexpected start bound %v", filter.CreatedAt.Start)
	}
}

func TestGetUserValidation(t *testing.T) {
	repo := newStubUserRepo(&domain.User{ID: 5, Username: "dealer"})
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodGet, "/api/v1/admin/users/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rr.Code)
	}

	rr = performJSON(t, router, http.MethodGet, "/api/v1/admin/users/-1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative id, got %d", rr.Code)
	}

	rr = performJSON(t, router, http.MethodGet, "/api/v1/admin/users/404", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}

	rr = performJSON(t, router, http.MethodGet, "/api/v1/admin/users/5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload UserPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Username != "dealer" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestUpdateUserRoleChangeRequiresSuperadmin(t *testing.T) {
	repo := newStubUserRepo(&domain.User{ID: 5, Username: "player"})
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"admin_role": "admin"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin promoting, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"admin_role": nil})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin demoting, got %d", rr.Code)
	}

	superRouter := usersTestRouter(t, repo, "superadmin")
	rr = performJSON(t, superRouter, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"admin_role": "admin"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for superadmin, got %d: %s", rr.Code, rr.Body.String())
	}

	if repo.lastUpdate == nil || repo.lastUpdate.AdminRole == nil || *repo.lastUpdate.AdminRole != "admin" {
		t.Fatalf("expected admin_role update to reach the repository, got %+v", repo.lastUpdate)
	}
}

func TestUpdateUserExplicitNullClearsRole(t *testing.T) {
	role := "admin"
	repo := newStubUserRepo(&domain.User{ID: 5, Username: "moderator", IsAdmin: true, AdminRole: &role})
	router := usersTestRouter(t, repo, "superadmin")

	rr := performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"admin_role": nil})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if repo.lastUpdate == nil || !repo.lastUpdate.ClearRole {
		t.Fatalf("expected a role-clearing update, got %+v", repo.lastUpdate)
	}

	var payload UserPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.AdminRole != nil || payload.IsAdmin {
		t.Fatalf("expected demoted payload, got %+v", payload)
	}
}

func TestUpdateUserRejectsEmptyAndInvalidPayloads(t *testing.T) {
	repo := newStubUserRepo(&domain.User{ID: 5, Username: "player"})
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %d", rr.Code)
	}

	rr = performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"password": "weak"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", rr.Code)
	}
}

func TestUpdateUserDuplicateConflict(t *testing.T) {
	repo := newStubUserRepo(&domain.User{ID: 5, Username: "player"})
	repo.updateErr = repository.ErrDuplicate
	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodPut, "/api/v1/admin/users/5",
		map[string]any{"username": "taken"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestDeleteUserRespectsAdminProtection(t *testing.T) {
	role := "admin"
	repo := newStubUserRepo(
		&domain.User{ID: 5, Username: "player"},
		&domain.User{ID: 6, Username: "moderator", IsAdmin: true, AdminRole: &role},
	)

	router := usersTestRouter(t, repo, "admin")

	rr := performJSON(t, router, http.MethodDelete, "/api/v1/admin/users/6", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting an admin as admin, got %d", rr.Code)
	}

	rr = performJSON(t, router, http.MethodDelete, "/api/v1/admin/users/5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting a plain user, got %d", rr.Code)
	}

	var message MessageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &message); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if message.Message == "" {
		t.Fatal("expected a confirmation message")
	}

	rr = performJSON(t, router, http.MethodDelete, "/api/v1/admin/users/404", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}

	superRouter := usersTestRouter(t, repo, "superadmin")
	rr = performJSON(t, superRouter, http.MethodDelete, "/api/v1/admin/users/6", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting an admin as superadmin, got %d", rr.Code)
	}
}
