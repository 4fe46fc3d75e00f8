package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type calendarRepository interface {
	List(ctx context.Context) ([]models.Calendar, error)
	FindByYear(ctx context.Context, year int) (*models.Calendar, error)
	Create(ctx context.Context, calendar *models.Calendar) error
	Update(ctx context.Context, calendar *models.Calendar) error
	Delete(ctx context.Context, year int) error
}

// CreateCalendarRequest describes calendar creation.
type CreateCalendarRequest struct {
	AcademicYear int       `json:"academic_year" validate:"required,min=2000"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	SchoolDays   int       `json:"school_days" validate:"required,min=1"`
}

// UpdateCalendarRequest describes a calendar update.
type UpdateCalendarRequest struct {
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required"`
	SchoolDays int       `json:"school_days" validate:"required,min=1"`
}

// CalendarService manages academic-year calendars.
type CalendarService struct {
	repo      calendarRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(repo calendarRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, validator: validate, logger: logger}
}

// List returns all calendars, newest year first.
func (s *CalendarService) List(ctx context.Context) ([]models.Calendar, error) {
	calendars, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}
	return calendars, nil
}

// Get returns the calendar for an academic year.
func (s *CalendarService) Get(ctx context.Context, year int) (*models.Calendar, error) {
	calendar, err := s.repo.FindByYear(ctx, year)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return calendar, nil
}

// Create opens an academic year.
func (s *CalendarService) Create(ctx context.Context, req CreateCalendarRequest) (*models.Calendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	if _, err := s.repo.FindByYear(ctx, req.AcademicYear); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "academic year already exists")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate academic year")
	}
	calendar := &models.Calendar{
		AcademicYear: req.AcademicYear,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		SchoolDays:   req.SchoolDays,
	}
	if err := s.repo.Create(ctx, calendar); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar")
	}
	s.logger.Info("calendar created", zap.Int("academic_year", calendar.AcademicYear))
	return calendar, nil
}

// Update overwrites a calendar's window.
func (s *CalendarService) Update(ctx context.Context, year int, req UpdateCalendarRequest) (*models.Calendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	calendar, err := s.Get(ctx, year)
	if err != nil {
		return nil, err
	}
	calendar.StartDate = req.StartDate
	calendar.EndDate = req.EndDate
	calendar.SchoolDays = req.SchoolDays
	if err := s.repo.Update(ctx, calendar); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar")
	}
	return calendar, nil
}

// Delete removes a calendar.
func (s *CalendarService) Delete(ctx context.Context, year int) error {
	if err := s.repo.Delete(ctx, year); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete calendar")
	}
	return nil
}
