package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type sessionCatalog interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
}

// CatalogService is the standalone session read surface. Class and
// calendar reads live with their owning services; sessions are the one
// aggregate fetched by id outside their class.
type CatalogService struct {
	sessions sessionCatalog
	logger   *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(sessions sessionCatalog, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{sessions: sessions, logger: logger}
}

// GetSession loads a session or reports not found.
func (s *CatalogService) GetSession(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}
