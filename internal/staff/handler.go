package staff

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/middleware"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
)

// Handler handles HTTP requests for the staff directory
type Handler struct {
	service Service
}

// NewHandler creates a new staff handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register handles POST /register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	user, err := h.service.Register(c.Request.Context(), *actor, req)
	if err != nil {
		handleStaffError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.ToResponse())
}

// List handles GET /staff
func (h *Handler) List(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, validation.FromValidator(err))
		return
	}

	users, err := h.service.List(c.Request.Context(), middleware.GetFilter(c), query)
	if err != nil {
		handleStaffError(c, err)
		return
	}

	out := make([]Response, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// Get handles GET /staff/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.service.Get(c.Request.Context(), id, middleware.GetFilter(c))
	if err != nil {
		handleStaffError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// Me handles GET /me
func (h *Handler) Me(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	user, err := h.service.Get(c.Request.Context(), principal.UserID, access.Filter{
		Relation: access.RelationSelf,
		UserID:   principal.UserID,
	})
	if err != nil {
		handleStaffError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// Update handles PATCH /staff/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	user, err := h.service.Update(c.Request.Context(), *actor, id, req)
	if err != nil {
		handleStaffError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// Delete handles DELETE /staff/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	if err := h.service.Delete(c.Request.Context(), *actor, id); err != nil {
		handleStaffError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// parseID reads :id; a malformed id is reported like a missing record
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		appErr := apperrors.NotFound("User")
		c.JSON(appErr.Status, appErr)
		return 0, false
	}
	return id, true
}

func handleStaffError(c *gin.Context, err error) {
	var fieldErrs apperrors.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		c.JSON(http.StatusBadRequest, fieldErrs)
	case errors.Is(err, ErrUserNotFound):
		appErr := apperrors.NotFound("User")
		c.JSON(appErr.Status, appErr)
	default:
		appErr := apperrors.Internal("Failed to process staff request", err)
		c.JSON(appErr.Status, appErr)
	}
}
