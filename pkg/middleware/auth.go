package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

const (
	principalKey = "principal"
	tokenKey     = "token"
)

type principalContextKey struct{}

// TokenVerifier resolves a bearer token to the user it was issued to
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*access.Principal, error)
}

// RequireAuth middleware ensures the request carries a valid bearer token.
// Unauthenticated requests get 401 before any capability check.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			appErr := errors.Unauthorized("Authentication credentials were not provided.")
			c.AbortWithStatusJSON(appErr.Status, appErr)
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			appErr := errors.Unauthorized("Invalid or expired token.")
			c.AbortWithStatusJSON(appErr.Status, appErr)
			return
		}

		c.Set(principalKey, principal)
		c.Set(tokenKey, token)

		ctx := context.WithValue(c.Request.Context(), principalContextKey{}, principal)
		log := logger.FromContext(ctx).WithUserID(principal.UserID).WithRole(principal.Role.String())
		c.Request = c.Request.WithContext(log.WithContext(ctx))

		c.Next()
	}
}

// GetPrincipal returns the authenticated user set by RequireAuth
func GetPrincipal(c *gin.Context) (*access.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*access.Principal)
	return p, ok
}

// GetToken returns the raw bearer token set by RequireAuth
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// PrincipalFromContext returns the authenticated user stored on a request
// context by RequireAuth.
func PrincipalFromContext(ctx context.Context) (*access.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*access.Principal)
	return p, ok
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
