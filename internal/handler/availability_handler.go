package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klinikgo/klinik-api/internal/service"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
	"github.com/klinikgo/klinik-api/pkg/response"
)

// AvailabilityHandler exposes slot availability endpoints.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Day godoc
// @Summary Slot grid for a doctor on one date
// @Tags Availability
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id}/availability [get]
func (h *AvailabilityHandler) Day(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required"))
		return
	}
	result, err := h.availability.GetDaySlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Range godoc
// @Summary Slot grids for a doctor over a date range
// @Tags Availability
// @Produce json
// @Param id path string true "Doctor ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id}/availability/range [get]
func (h *AvailabilityHandler) Range(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to query parameters are required"))
		return
	}
	result, err := h.availability.GetRangeSlots(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
