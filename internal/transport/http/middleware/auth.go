package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mopd1/LuckyDeck-clean/internal/core/domain"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/security"
	"github.com/mopd1/LuckyDeck-clean/internal/usecase"
)

const bearerPrefix = "Bearer "

type authErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// RequireAuth validates the bearer token on the request and stores the
// verified claims in the Gin context. Expired tokens get a distinct error
// code so clients know to refresh instead of re-authenticating.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, "missing or malformed authorization header", "unauthorized")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			abortUnauthorized(c, "missing or malformed authorization header", "unauthorized")
			return
		}

		claims, err := auth.ParseAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrExpiredAccessToken) {
				abortUnauthorized(c, "access token expired", "token_expired")
				return
			}
			abortUnauthorized(c, "invalid access token", "unauthorized")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated role does not reach
// the given minimum. It must run after RequireAuth.
func RequireRole(minimum domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			abortUnauthorized(c, "authentication required", "unauthorized")
			return
		}

		if !domain.ParseRole(claims.Role).AtLeast(minimum) {
			c.AbortWithStatusJSON(http.StatusForbidden, authErrorBody{
				Error:   "insufficient privileges",
				Code:    "forbidden",
				TraceID: GetTraceID(c),
			})
			return
		}

		c.Next()
	}
}

// ClaimsFromContext retrieves the verified access token claims stored by
// RequireAuth.
func ClaimsFromContext(c *gin.Context) (*security.AccessTokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.AccessTokenClaims)
	return claims, ok
}

// ActorFromContext builds the acting principal for use case calls from the
// claims stored by RequireAuth.
func ActorFromContext(c *gin.Context) (usecase.Actor, bool) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		return usecase.Actor{}, false
	}

	return usecase.Actor{
		ID:   claims.UserID,
		Role: domain.ParseRole(claims.Role),
	}, true
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.Header("WWW-Authenticate", `Bearer realm="admin"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, authErrorBody{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(c),
	})
}
