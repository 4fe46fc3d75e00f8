package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/escolardev/escolar-api/internal/service"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
	"github.com/escolardev/escolar-api/pkg/response"
)

// CalendarHandler exposes academic-calendar endpoints.
type CalendarHandler struct {
	calendars *service.CalendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendars *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendars: calendars}
}

func academicYear(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academic year must be an integer"))
		return 0, false
	}
	return year, true
}

// List godoc
// @Summary List academic calendars
// @Tags Calendars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendars [get]
func (h *CalendarHandler) List(c *gin.Context) {
	calendars, err := h.calendars.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendars, nil)
}

// Get godoc
// @Summary Get calendar by academic year
// @Tags Calendars
// @Produce json
// @Param year path int true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /calendars/{year} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	year, ok := academicYear(c)
	if !ok {
		return
	}
	calendar, err := h.calendars.Get(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Create godoc
// @Summary Create academic calendar
// @Tags Calendars
// @Accept json
// @Produce json
// @Param payload body service.CreateCalendarRequest true "Calendar payload"
// @Success 201 {object} response.Envelope
// @Router /calendars [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	var req service.CreateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	calendar, err := h.calendars.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, calendar)
}

// Update godoc
// @Summary Update academic calendar
// @Tags Calendars
// @Accept json
// @Produce json
// @Param year path int true "Academic year"
// @Param payload body service.UpdateCalendarRequest true "Calendar payload"
// @Success 200 {object} response.Envelope
// @Router /calendars/{year} [put]
func (h *CalendarHandler) Update(c *gin.Context) {
	year, ok := academicYear(c)
	if !ok {
		return
	}
	var req service.UpdateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	calendar, err := h.calendars.Update(c.Request.Context(), year, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Delete godoc
// @Summary Delete academic calendar
// @Tags Calendars
// @Produce json
// @Param year path int true "Academic year"
// @Success 204
// @Router /calendars/{year} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	year, ok := academicYear(c)
	if !ok {
		return
	}
	if err := h.calendars.Delete(c.Request.Context(), year); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
