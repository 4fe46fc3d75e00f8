package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escolardev/escolar-api/internal/models"
)

// CalendarRepository handles persistence for academic-year calendars.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const calendarColumns = `academic_year, start_date, end_date, school_days, created_at, updated_at`

// List returns all calendars ordered by academic year, newest first.
func (r *CalendarRepository) List(ctx context.Context) ([]models.Calendar, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendars ORDER BY academic_year DESC`, calendarColumns)
	var calendars []models.Calendar
	if err := r.db.SelectContext(ctx, &calendars, query); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return calendars, nil
}

// FindByYear returns the calendar for an academic year.
func (r *CalendarRepository) FindByYear(ctx context.Context, year int) (*models.Calendar, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendars WHERE academic_year = $1`, calendarColumns)
	var calendar models.Calendar
	if err := r.db.GetContext(ctx, &calendar, query, year); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// Create persists a new calendar.
func (r *CalendarRepository) Create(ctx context.Context, calendar *models.Calendar) error {
	now := time.Now().UTC()
	calendar.CreatedAt = now
	calendar.UpdatedAt = now
	const query = `INSERT INTO calendars (academic_year, start_date, end_date, school_days, created_at, updated_at)
VALUES (:academic_year, :start_date, :end_date, :school_days, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, calendar); err != nil {
		return fmt.Errorf("create calendar: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a calendar.
func (r *CalendarRepository) Update(ctx context.Context, calendar *models.Calendar) error {
	calendar.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendars SET start_date = :start_date, end_date = :end_date,
school_days = :school_days, updated_at = :updated_at
WHERE academic_year = :academic_year`
	res, err := r.db.NamedExecContext(ctx, query, calendar)
	if err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	return requireRow(res)
}

// Delete removes a calendar.
func (r *CalendarRepository) Delete(ctx context.Context, year int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE academic_year = $1`, year)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return requireRow(res)
}
