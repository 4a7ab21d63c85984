package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
)

type RotationHandler struct {
	BaseHandler
	rotationService services.RotationService
}

func NewRotationHandler(rotationService services.RotationService, logger utils.Logger) *RotationHandler {
	return &RotationHandler{
		BaseHandler:     NewBaseHandler(logger),
		rotationService: rotationService,
	}
}

// SearchRotations lists published rotations, optionally narrowed to one
// location or one brand
// @Router /rotations/search [get]
func (h *RotationHandler) SearchRotations(c *gin.Context) {
	filters := repositories.RotationSearchFilters{
		LocationID: parseUintQueryPtr(c, "location"),
		BrandID:    parseUintQueryPtr(c, "brand"),
	}

	results, err := h.rotationService.Search(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rotations": results, "count": len(results)})
}

// ListRotations lists rotations of any status
// @Router /rotations [get]
func (h *RotationHandler) ListRotations(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.RotationFilters{
		LocationID: parseUintQueryPtr(c, "location_id"),
		Limit:      size,
		Offset:     (page - 1) * size,
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.RotationStatus(status)
		if !s.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid status",
				Details: "status must be published or draft",
			})
			return
		}
		filters.Status = &s
	}

	list, err := h.rotationService.List(c.Request.Context(), user, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetRotation retrieves a rotation by ID
// @Router /rotations/{id} [get]
func (h *RotationHandler) GetRotation(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	rotation, err := h.rotationService.Get(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rotation)
}

// CreateRotation adds a single rotation by hand
// @Router /rotations [post]
func (h *RotationHandler) CreateRotation(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	var req services.CreateRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	rotation, err := h.rotationService.Create(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Rotation created", rotation, "rotation_id", rotation.ID)
}

// DeleteRotation deletes a rotation
// @Router /rotations/{id} [delete]
func (h *RotationHandler) DeleteRotation(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.rotationService.Delete(c.Request.Context(), user, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
