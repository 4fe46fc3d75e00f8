package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolardev/escolar-api/internal/service"
	"github.com/escolardev/escolar-api/pkg/response"
)

// TranscriptHandler exposes the read-derived transcript views.
type TranscriptHandler struct {
	transcripts *service.TranscriptService
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// ReportCard godoc
// @Summary Report card for the student's current class
// @Tags Transcripts
// @Produce json
// @Param registration path string true "Registration number"
// @Success 200 {object} response.Envelope
// @Router /transcripts/{registration}/report-card [get]
func (h *TranscriptHandler) ReportCard(c *gin.Context) {
	transcript, err := h.transcripts.GetReportCard(c.Request.Context(), c.Param("registration"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}

// History godoc
// @Summary Academic history across every enrolled class
// @Tags Transcripts
// @Produce json
// @Param registration path string true "Registration number"
// @Success 200 {object} response.Envelope
// @Router /transcripts/{registration}/history [get]
func (h *TranscriptHandler) History(c *gin.Context) {
	transcript, err := h.transcripts.GetHistory(c.Request.Context(), c.Param("registration"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}
