package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type classRepoStub struct {
	created *models.Class
}

func (s *classRepoStub) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, 0, nil
}

func (s *classRepoStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return nil, sql.ErrNoRows
}

func (s *classRepoStub) Create(ctx context.Context, class *models.Class) error {
	class.ID = "class-1"
	s.created = class
	return nil
}

func (s *classRepoStub) Update(ctx context.Context, class *models.Class) error { return nil }

func (s *classRepoStub) UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error {
	return nil
}

func (s *classRepoStub) Delete(ctx context.Context, id string) error { return nil }

type roomStub struct {
	rooms map[int]*models.Room
}

func (s *roomStub) FindByNumber(ctx context.Context, number int) (*models.Room, error) {
	room, ok := s.rooms[number]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return room, nil
}

type calendarStub struct {
	years map[int]*models.Calendar
}

func (s *calendarStub) FindByYear(ctx context.Context, year int) (*models.Calendar, error) {
	calendar, ok := s.years[year]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return calendar, nil
}

func newClassFixture() (*ClassService, *classRepoStub) {
	repo := &classRepoStub{}
	rooms := &roomStub{rooms: map[int]*models.Room{
		12: {Number: 12, Location: "block A", Capacity: 35},
	}}
	calendars := &calendarStub{years: map[int]*models.Calendar{
		2025: {AcademicYear: 2025, StartDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), SchoolDays: 200},
	}}
	svc := NewClassService(repo, nil, nil, rooms, nil, nil, calendars, nil, nil, nil)
	return svc, repo
}

func TestCreateClassRequiresCalendarYear(t *testing.T) {
	svc, repo := newClassFixture()

	class, err := svc.Create(context.Background(), CreateClassRequest{
		Grade:          1,
		Track:          "A",
		EducationLevel: "high",
		Shift:          "morning",
		RoomNumber:     12,
		AcademicYear:   2025,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, "class-1", class.ID)
	assert.Equal(t, models.ClassStatusOpen, class.Status)
	assert.Equal(t, 2025, class.AcademicYear)
}

func TestCreateClassUnknownAcademicYear(t *testing.T) {
	svc, repo := newClassFixture()

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Grade:          1,
		Track:          "A",
		EducationLevel: "high",
		Shift:          "morning",
		RoomNumber:     12,
		AcademicYear:   2030,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Nil(t, repo.created)
}

func TestCreateClassUnknownRoom(t *testing.T) {
	svc, repo := newClassFixture()

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Grade:          1,
		Track:          "A",
		EducationLevel: "high",
		Shift:          "morning",
		RoomNumber:     99,
		AcademicYear:   2025,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Nil(t, repo.created)
}
