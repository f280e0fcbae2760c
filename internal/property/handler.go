package property

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/middleware"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
)

// Handler handles HTTP requests for buildings, entrances and apartments
type Handler struct {
	service Service
}

// NewHandler creates a new property handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListBuildings handles GET /buildings
func (h *Handler) ListBuildings(c *gin.Context) {
	buildings, err := h.service.ListBuildings(c.Request.Context(), middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}

	out := make([]BuildingResponse, 0, len(buildings))
	for _, b := range buildings {
		out = append(out, b.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// GetBuilding handles GET /buildings/:id
func (h *Handler) GetBuilding(c *gin.Context) {
	id, ok := parseID(c, "Building")
	if !ok {
		return
	}

	b, err := h.service.GetBuilding(c.Request.Context(), id, middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, b.ToResponse())
}

// CreateBuilding handles POST /buildings
func (h *Handler) CreateBuilding(c *gin.Context) {
	var req CreateBuildingRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	b, err := h.service.CreateBuilding(c.Request.Context(), *actor, req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b.ToResponse())
}

// UpdateBuilding handles PATCH /buildings/:id
func (h *Handler) UpdateBuilding(c *gin.Context) {
	id, ok := parseID(c, "Building")
	if !ok {
		return
	}

	var req UpdateBuildingRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	b, err := h.service.UpdateBuilding(c.Request.Context(), *actor, id, middleware.GetFilter(c), req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, b.ToResponse())
}

// DeleteBuilding handles DELETE /buildings/:id
func (h *Handler) DeleteBuilding(c *gin.Context) {
	id, ok := parseID(c, "Building")
	if !ok {
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	if err := h.service.DeleteBuilding(c.Request.Context(), *actor, id, middleware.GetFilter(c)); err != nil {
		handlePropertyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEntrances handles GET /entrances
func (h *Handler) ListEntrances(c *gin.Context) {
	entrances, err := h.service.ListEntrances(c.Request.Context(), middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}

	out := make([]EntranceResponse, 0, len(entrances))
	for _, e := range entrances {
		out = append(out, e.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// GetEntrance handles GET /entrances/:id
func (h *Handler) GetEntrance(c *gin.Context) {
	id, ok := parseID(c, "Entrance")
	if !ok {
		return
	}

	e, err := h.service.GetEntrance(c.Request.Context(), id, middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.ToResponse())
}

// CreateEntrance handles POST /entrances
func (h *Handler) CreateEntrance(c *gin.Context) {
	var req CreateEntranceRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	e, err := h.service.CreateEntrance(c.Request.Context(), *actor, middleware.GetFilter(c), req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e.ToResponse())
}

// UpdateEntrance handles PATCH /entrances/:id
func (h *Handler) UpdateEntrance(c *gin.Context) {
	id, ok := parseID(c, "Entrance")
	if !ok {
		return
	}

	var req UpdateEntranceRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	e, err := h.service.UpdateEntrance(c.Request.Context(), *actor, id, middleware.GetFilter(c), req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.ToResponse())
}

// DeleteEntrance handles DELETE /entrances/:id
func (h *Handler) DeleteEntrance(c *gin.Context) {
	id, ok := parseID(c, "Entrance")
	if !ok {
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	if err := h.service.DeleteEntrance(c.Request.Context(), *actor, id, middleware.GetFilter(c)); err != nil {
		handlePropertyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListApartments handles GET /apartments
func (h *Handler) ListApartments(c *gin.Context) {
	apartments, err := h.service.ListApartments(c.Request.Context(), middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}

	out := make([]ApartmentResponse, 0, len(apartments))
	for _, a := range apartments {
		out = append(out, a.ToResponse())
	}
	c.JSON(http.StatusOK, out)
}

// GetApartment handles GET /apartments/:id
func (h *Handler) GetApartment(c *gin.Context) {
	id, ok := parseID(c, "Apartment")
	if !ok {
		return
	}

	a, err := h.service.GetApartment(c.Request.Context(), id, middleware.GetFilter(c))
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.ToResponse())
}

// CreateApartment handles POST /apartments
func (h *Handler) CreateApartment(c *gin.Context) {
	var req CreateApartmentRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	a, err := h.service.CreateApartment(c.Request.Context(), *actor, middleware.GetFilter(c), req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.ToResponse())
}

// UpdateApartment handles PATCH /apartments/:id
func (h *Handler) UpdateApartment(c *gin.Context) {
	id, ok := parseID(c, "Apartment")
	if !ok {
		return
	}

	var req UpdateApartmentRequest
	if fieldErrs := validation.BindJSON(c, &req); fieldErrs != nil {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	a, err := h.service.UpdateApartment(c.Request.Context(), *actor, id, middleware.GetFilter(c), req)
	if err != nil {
		handlePropertyError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.ToResponse())
}

// DeleteApartment handles DELETE /apartments/:id
func (h *Handler) DeleteApartment(c *gin.Context) {
	id, ok := parseID(c, "Apartment")
	if !ok {
		return
	}

	actor, _ := middleware.GetPrincipal(c)
	if err := h.service.DeleteApartment(c.Request.Context(), *actor, id, middleware.GetFilter(c)); err != nil {
		handlePropertyError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseID reads :id; a malformed id is reported like a missing record
func parseID(c *gin.Context, resource string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		appErr := apperrors.NotFound(resource)
		c.JSON(appErr.Status, appErr)
		return 0, false
	}
	return id, true
}

func handlePropertyError(c *gin.Context, err error) {
	var (
		fieldErrs apperrors.FieldErrors
		appErr    *apperrors.AppError
	)
	switch {
	case errors.As(err, &fieldErrs):
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	case errors.Is(err, ErrBuildingNotFound):
		appErr = apperrors.NotFound("Building")
	case errors.Is(err, ErrEntranceNotFound):
		appErr = apperrors.NotFound("Entrance")
	case errors.Is(err, ErrApartmentNotFound):
		appErr = apperrors.NotFound("Apartment")
	default:
		appErr = apperrors.Internal("Failed to process property request", err)
	}
	c.JSON(appErr.Status, appErr)
}
