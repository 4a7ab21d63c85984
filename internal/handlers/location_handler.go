package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
)

type LocationHandler struct {
	BaseHandler
	locationService services.LocationService
}

func NewLocationHandler(locationService services.LocationService, logger utils.Logger) *LocationHandler {
	return &LocationHandler{
		BaseHandler:     NewBaseHandler(logger),
		locationService: locationService,
	}
}

// ListLocations returns every location ordered by title
// @Router /locations [get]
func (h *LocationHandler) ListLocations(c *gin.Context) {
	locations, err := h.locationService.Locations(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// ListBrands returns every brand ordered by name
// @Router /brands [get]
func (h *LocationHandler) ListBrands(c *gin.Context) {
	brands, err := h.locationService.Brands(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// CreateLocation adds a location with its brand tags
// @Router /locations [post]
func (h *LocationHandler) CreateLocation(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	var req services.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	location, err := h.locationService.Create(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Location created", location, "location_id", location.ID)
}

// DeleteLocation deletes a location and its rotations
// @Router /locations/{id} [delete]
func (h *LocationHandler) DeleteLocation(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.locationService.Delete(c.Request.Context(), user, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
