package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportCardRepositoryFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "session_id", "grades", "absences", "situation", "created_at", "updated_at"}).
		AddRow("st-1", "se-1", []byte("{8,7.5}"), 2, models.SituationInProgress, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM report_cards WHERE student_id = \$1 AND session_id = \$2`).
		WithArgs("st-1", "se-1").
		WillReturnRows(rows)

	card, err := repo.Find(context.Background(), "st-1", "se-1")
	require.NoError(t, err)
	require.Equal(t, pq.Float64Array{8, 7.5}, card.Grades)
	require.Equal(t, 2, card.Absences)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryAppendGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(`UPDATE report_cards\s+SET grades = array_append`).
		WithArgs("st-1", "se-1", 9.0, sqlmock.AnyArg(), models.MaxGradeSlots).
		WillReturnResult(sqlmock.NewResult(0, 1))

	appended, err := repo.AppendGrade(context.Background(), "st-1", "se-1", 9)
	require.NoError(t, err)
	require.True(t, appended)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryAppendGradeAtCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	// cardinality(grades) < limit filters the row out: zero rows updated.
	mock.ExpectExec(`UPDATE report_cards\s+SET grades = array_append`).
		WithArgs("st-1", "se-1", 9.0, sqlmock.AnyArg(), models.MaxGradeSlots).
		WillReturnResult(sqlmock.NewResult(0, 0))

	appended, err := repo.AppendGrade(context.Background(), "st-1", "se-1", 9)
	require.NoError(t, err)
	require.False(t, appended)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryIncrementAbsence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "session_id", "grades", "absences", "situation", "created_at", "updated_at"}).
		AddRow("st-1", "se-1", []byte("{}"), 15, models.SituationFailed, time.Now(), time.Now())
	mock.ExpectQuery(`UPDATE report_cards\s+SET absences = absences \+ 1`).
		WithArgs("st-1", "se-1", models.SituationFailed, 15.0, sqlmock.AnyArg()).
		WillReturnRows(rows)

	card, err := repo.IncrementAbsence(context.Background(), "st-1", "se-1", 15)
	require.NoError(t, err)
	require.Equal(t, 15, card.Absences)
	require.Equal(t, models.SituationFailed, card.Situation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryReplaceGradesMissingCard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(`UPDATE report_cards SET grades = \$3`).
		WithArgs("st-1", "se-9", pq.Float64Array{7, 8}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReplaceGrades(context.Background(), "st-1", "se-9", []float64{7, 8})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryCreateForSessionsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(`INSERT INTO report_cards`).
		WithArgs("st-1", "se-1", models.SituationInProgress, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO report_cards`).
		WithArgs("st-1", "se-2", models.SituationInProgress, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateForSessions(context.Background(), db, "st-1", []string{"se-1", "se-2"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateReportCard))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositorySetSituation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(`UPDATE report_cards SET situation = \$3`).
		WithArgs("st-1", "se-1", models.SituationInProgress, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetSituation(context.Background(), "st-1", "se-1", models.SituationInProgress)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
