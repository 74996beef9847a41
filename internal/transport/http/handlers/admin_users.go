package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/transport/http/middleware"
	"github.com/mopd1/LuckyDeck-clean/internal/usecase"
)

// AdminUsersHandler exposes administrative user management endpoints.
type AdminUsersHandler struct {
	users *usecase.UserService
}

// NewAdminUsersHandler constructs AdminUsersHandler.
func NewAdminUsersHandler(users *usecase.UserService) *AdminUsersHandler {
	return &AdminUsersHandler{users: users}
}

// RegisterRoutes binds the user management routes onto the given group.
func (h *AdminUsersHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.list)
	r.GET("/users/:id", h.get)
	r.PUT("/users/:id", h.update)
	r.DELETE("/users/:id", h.remove)
}

var userErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrSuperadminRequired, Status: http.StatusForbidden, Message: "superadmin role required"},
	{Err: usecase.ErrInvalidAdminRole, Status: http.StatusBadRequest, Message: "admin_role must be admin or superadmin"},
	{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
	{Err: usecase.ErrDuplicateUser, Status: http.StatusConflict, Message: "username or email already exists"},
}

// List godoc
// @Summary List users
// @Description Returns one page of users matching the optional filters, with pagination metadata.
// @Tags Users
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param username query string false "Username substring match"
// @Param email query string false "Email substring match"
// @Param is_active query bool false "Filter by active flag"
// @Param is_admin query bool false "Filter by admin flag"
// @Param account_locked query bool false "Filter by lock flag"
// @Param min_chips query int false "Minimum chip balance"
// @Param max_chips query int false "Maximum chip balance"
// @Param min_gems query int false "Minimum gem balance"
// @Param max_gems query int false "Maximum gem balance"
// @Param start_date query string false "Created-at lower bound"
// @Param end_date query string false "Created-at upper bound"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} UserListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/users [get]
func (h *AdminUsersHandler) list(c *gin.Context) {
	filter, err := parseUserFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	users, pagination, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list users"))
		return
	}

	c.JSON(http.StatusOK, newUserListResponse(users, pagination))
}

// Get godoc
// @Summary Fetch a single user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/users/{id} [get]
func (h *AdminUsersHandler) get(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}

// Update godoc
// @Summary Update a user
// @Description Applies a partial update. Changing or clearing admin_role requires a superadmin caller.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UserUpdateRequest true "Fields to update"
// @Success 200 {object} UserPayload
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/users/{id} [put]
func (h *AdminUsersHandler) update(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid update payload"))
		return
	}

	input := usecase.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		IsActive: req.IsActive,
		Chips:    req.Chips,
		Gems:     req.Gems,
		Password: req.Password,
	}

	if req.AdminRole.Set {
		if req.AdminRole.Value == nil {
			input.ClearAdminRole = true
		} else {
			input.AdminRole = req.AdminRole.Value
		}
	}

	if isEmptyUpdate(input) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "no fields to update"))
		return
	}

	user, err := h.users.Update(c.Request.Context(), actor, id, input)
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, newUserPayload(*user))
}

// Delete godoc
// @Summary Delete a user
// @Description Removes the user. Deleting an admin account requires a superadmin caller.
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/users/{id} [delete]
func (h *AdminUsersHandler) remove(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.users.Delete(c.Request.Context(), actor, id); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "failed to delete user")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "user deleted successfully"})
}

func parseUserID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func isEmptyUpdate(input usecase.UpdateUserInput) bool {
	return input.Username == nil && input.Email == nil && input.IsActive == nil &&
		input.Chips == nil && input.Gems == nil && input.AdminRole == nil &&
		!input.ClearAdminRole && input.Password == nil
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseUserFilter validates query parameters and builds the list filter.
// Substring filters pass through as-is; booleans are true only for the
// literal "true"; malformed numbers, dates, pages, or sort columns reject
// the request.
func parseUserFilter(c *gin.Context) (domain.UserFilter, error) {
	filter := domain.NewUserFilter()

	filter.Username = strings.TrimSpace(c.Query("username"))
	filter.Email = strings.TrimSpace(c.Query("email"))

	for param, target := range map[string]**bool{
		"is_active":      &filter.IsActive,
		"is_admin":       &filter.IsAdmin,
		"account_locked": &filter.AccountLocked,
	} {
		if raw, present := c.GetQuery(param); present {
			value := raw == "true"
			*target = &value
		}
	}

	var err error
	if filter.Chips.Min, err = parseOptionalInt(c, "min_chips"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.Chips.Max, err = parseOptionalInt(c, "max_chips"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.Gems.Min, err = parseOptionalInt(c, "min_gems"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.Gems.Max, err = parseOptionalInt(c, "max_gems"); err != nil {
		return domain.UserFilter{}, err
	}

	if filter.CreatedAt.Start, err = parseOptionalTime(c, "start_date"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.CreatedAt.End, err = parseOptionalTime(c, "end_date"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.LastLogin.Start, err = parseOptionalTime(c, "last_login_start"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.LastLogin.End, err = parseOptionalTime(c, "last_login_end"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.LastFreeChipsClaim.Start, err = parseOptionalTime(c, "last_claim_start"); err != nil {
		return domain.UserFilter{}, err
	}
	if filter.LastFreeChipsClaim.End, err = parseOptionalTime(c, "last_claim_end"); err != nil {
		return domain.UserFilter{}, err
	}

	if raw, present := c.GetQuery("page"); present {
		page, convErr := strconv.Atoi(raw)
		if convErr != nil || page < 1 {
			return domain.UserFilter{}, filterError("page must be a positive integer")
		}
		filter.Page = page
	}

	if raw, present := c.GetQuery("sort_by"); present {
		field := domain.SortField(strings.TrimSpace(raw))
		if !domain.ValidSortField(field) {
			return domain.UserFilter{}, filterError("sort_by column is not sortable")
		}
		filter.SortBy = field
	}

	if strings.EqualFold(c.Query("sort_order"), "asc") {
		filter.Direction = domain.SortAsc
	}

	return filter, nil
}

func parseOptionalInt(c *gin.Context, param string) (*int64, error) {
	raw, present := c.GetQuery(param)
	if !present || raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, filterError(param + " must be an integer")
	}
	return &value, nil
}

func parseOptionalTime(c *gin.Context, param string) (*time.Time, error) {
	raw, present := c.GetQuery(param)
	if !present || raw == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if value, err := time.Parse(layout, raw); err == nil {
			return &value, nil
		}
	}

	return nil, filterError(param + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}
