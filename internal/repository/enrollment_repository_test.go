package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
)

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, NewReportCardRepository(db))

	rows := sqlmock.NewRows([]string{"class_id", "academic_year", "status", "enrolled_at"}).
		AddRow("c-1", 2024, models.ClassStatusClosed, time.Now()).
		AddRow("c-2", 2025, models.ClassStatusOpen, time.Now())
	mock.ExpectQuery(`SELECT e\.class_id, c\.academic_year, c\.status, e\.enrolled_at`).
		WithArgs("st-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByStudent(context.Background(), "st-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.Equal(t, "c-2", enrollments[1].ClassID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollFirstEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, NewReportCardRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT registration_id FROM students WHERE id = \$1 FOR UPDATE`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}).AddRow(nil))
	mock.ExpectQuery(`SELECT e\.class_id, c\.academic_year, c\.status, e\.enrolled_at`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "academic_year", "status", "enrolled_at"}))
	mock.ExpectQuery(`SELECT nextval\('student_registration_seq'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))
	mock.ExpectExec(`UPDATE students SET registration_id = \$2`).
		WithArgs("st-1", "202500000042", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WithArgs("st-1", "c-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO report_cards`).
		WithArgs("st-1", "se-1", models.SituationInProgress, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	target := models.Class{ID: "c-1", AcademicYear: 2025, Status: models.ClassStatusOpen}
	result, err := repo.Enroll(context.Background(), "st-1", target, []string{"se-1"})
	require.NoError(t, err)
	require.Equal(t, "202500000042", result.RegistrationID)
	require.Equal(t, models.EnrollmentModeCreate, result.Mode)
	require.Equal(t, 1, result.ReportCards)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollReplacesCurrentClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, NewReportCardRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT registration_id FROM students WHERE id = \$1 FOR UPDATE`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}).AddRow("202500000042"))
	mock.ExpectQuery(`SELECT e\.class_id, c\.academic_year, c\.status, e\.enrolled_at`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "academic_year", "status", "enrolled_at"}).
			AddRow("c-old", 2025, models.ClassStatusOpen, time.Now()))
	mock.ExpectExec(`DELETE FROM report_cards`).
		WithArgs("st-1", "c-old").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM enrollments WHERE student_id = \$1 AND class_id = \$2`).
		WithArgs("st-1", "c-old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WithArgs("st-1", "c-new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO report_cards`).
		WithArgs("st-1", "se-1", models.SituationInProgress, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Open previous class, new year: the old admission and its cards go away.
	target := models.Class{ID: "c-new", AcademicYear: 2026, Status: models.ClassStatusOpen}
	result, err := repo.Enroll(context.Background(), "st-1", target, []string{"se-1"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentModeReplace, result.Mode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollDuplicateYearRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, NewReportCardRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT registration_id FROM students WHERE id = \$1 FOR UPDATE`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}).AddRow("202500000042"))
	mock.ExpectQuery(`SELECT e\.class_id, c\.academic_year, c\.status, e\.enrolled_at`).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "academic_year", "status", "enrolled_at"}).
			AddRow("c-old", 2025, models.ClassStatusClosed, time.Now()))
	mock.ExpectRollback()

	// The closed class pins the year: a second admission for 2025 is refused.
	target := models.Class{ID: "c-new", AcademicYear: 2025, Status: models.ClassStatusOpen}
	_, err := repo.Enroll(context.Background(), "st-1", target, []string{"se-1"})
	require.ErrorIs(t, err, ErrDuplicateYear)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollUnknownStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db, NewReportCardRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT registration_id FROM students WHERE id = \$1 FOR UPDATE`).
		WithArgs("st-9").
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}))
	mock.ExpectRollback()

	target := models.Class{ID: "c-1", AcademicYear: 2025, Status: models.ClassStatusOpen}
	_, err := repo.Enroll(context.Background(), "st-9", target, nil)
	require.ErrorIs(t, err, ErrStudentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
