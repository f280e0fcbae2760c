package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/middleware"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
)

const (
	msgInvalidCredentials = "Unable to log in with provided credentials."
	msgUserInactive       = "User account is disabled."
)

// RuleSource lists capability rows. *access.Table implements it.
type RuleSource interface {
	Rules(role access.Role) []access.Rule
}

// Handler handles HTTP requests for authentication
type Handler struct {
	service Service
	rules   RuleSource
}

// NewHandler creates a new auth handler
func NewHandler(service Service, rules RuleSource) *Handler {
	return &Handler{
		service: service,
		rules:   rules,
	}
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	response, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Logout handles POST /logout
func (h *Handler) Logout(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	if err := h.service.Logout(c.Request.Context(), *principal, middleware.GetToken(c)); err != nil {
		handleAuthError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Capabilities handles GET /capabilities: the caller role's rows of the
// capability table.
func (h *Handler) Capabilities(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	c.JSON(http.StatusOK, h.rules.Rules(principal.Role))
}

func handleAuthError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, apperrors.Field(apperrors.NonFieldErrors, msgInvalidCredentials))
		return
	case errors.Is(err, ErrUserInactive):
		c.JSON(http.StatusBadRequest, apperrors.Field(apperrors.NonFieldErrors, msgUserInactive))
		return
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
		appErr = apperrors.Unauthorized("Invalid or expired token.")
	default:
		appErr = apperrors.Internal("Internal server error", err)
	}
	c.JSON(appErr.Status, appErr)
}
