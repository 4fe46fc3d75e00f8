package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escolardev/escolar-api/internal/service"
	"github.com/escolardev/escolar-api/pkg/response"
)

// CatalogHandler exposes the shared read surface over sessions.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetSession godoc
// @Summary Get class session by ID
// @Tags Classes
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *CatalogHandler) GetSession(c *gin.Context) {
	session, err := h.catalog.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
