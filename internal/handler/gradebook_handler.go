package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolardev/escolar-api/internal/service"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
	"github.com/escolardev/escolar-api/pkg/response"
)

// GradebookHandler exposes grade and absence recording endpoints.
type GradebookHandler struct {
	gradebook *service.GradebookService
}

// NewGradebookHandler constructs GradebookHandler.
func NewGradebookHandler(gradebook *service.GradebookService) *GradebookHandler {
	return &GradebookHandler{gradebook: gradebook}
}

// RecordGrade godoc
// @Summary Append a grade to a report card
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /gradebook/grades [post]
func (h *GradebookHandler) RecordGrade(c *gin.Context) {
	var req service.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.gradebook.RecordGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// BulkRecordGrades godoc
// @Summary Append grades for several students of a session
// @Description Entries apply independently; failures are reported per entry.
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param payload body service.BulkRecordGradesRequest true "Bulk grade payload"
// @Success 200 {object} response.Envelope
// @Router /gradebook/grades/bulk [post]
func (h *GradebookHandler) BulkRecordGrades(c *gin.Context) {
	var req service.BulkRecordGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.gradebook.BulkRecordGrades(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// RecordAbsences godoc
// @Summary Record one absence for each listed student of a session
// @Description Entries apply independently; a student whose count reaches the
// @Description subject's absence limit is flipped to failed.
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param payload body service.RecordAbsencesRequest true "Absence payload"
// @Success 200 {object} response.Envelope
// @Router /gradebook/absences [post]
func (h *GradebookHandler) RecordAbsences(c *gin.Context) {
	var req service.RecordAbsencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.gradebook.RecordAbsences(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Roster godoc
// @Summary Session roster with report-card state
// @Tags Gradebook
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/roster [get]
func (h *GradebookHandler) Roster(c *gin.Context) {
	roster, err := h.gradebook.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// GetEntry godoc
// @Summary Report-card entry for a student and session
// @Tags Gradebook
// @Produce json
// @Param registration path string true "Registration number"
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{registration}/{sessionId} [get]
func (h *GradebookHandler) GetEntry(c *gin.Context) {
	card, err := h.gradebook.GetReportCardEntry(c.Request.Context(), c.Param("registration"), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// ReplaceGrades godoc
// @Summary Replace the full grade list of a report card
// @Description Administrative correction; works on closed classes.
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param registration path string true "Registration number"
// @Param sessionId path string true "Session ID"
// @Param payload body service.ReplaceGradesRequest true "Grades payload"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{registration}/{sessionId}/grades [put]
func (h *GradebookHandler) ReplaceGrades(c *gin.Context) {
	var req service.ReplaceGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.gradebook.ReplaceGrades(c.Request.Context(), c.Param("registration"), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// SetAbsences godoc
// @Summary Overwrite the absence count of a report card
// @Description Administrative correction; works on closed classes.
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param registration path string true "Registration number"
// @Param sessionId path string true "Session ID"
// @Param payload body service.SetAbsencesRequest true "Absences payload"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{registration}/{sessionId}/absences [put]
func (h *GradebookHandler) SetAbsences(c *gin.Context) {
	var req service.SetAbsencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.gradebook.SetAbsences(c.Request.Context(), c.Param("registration"), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// OverrideSituation godoc
// @Summary Override the stored situation of a report card
// @Description Administrative correction; the only path that reverts failed.
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param registration path string true "Registration number"
// @Param sessionId path string true "Session ID"
// @Param payload body service.OverrideSituationRequest true "Situation payload"
// @Success 200 {object} response.Envelope
// @Router /gradebook/{registration}/{sessionId}/situation [put]
func (h *GradebookHandler) OverrideSituation(c *gin.Context) {
	var req service.OverrideSituationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	card, err := h.gradebook.OverrideSituation(c.Request.Context(), c.Param("registration"), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}
