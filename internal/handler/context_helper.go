package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/escolardev/escolar-api/internal/middleware"
	"github.com/escolardev/escolar-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextStaffKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
