package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinikgo/klinik-api/internal/models"
)

func newDoctorRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDoctorRepositoryList(t *testing.T) {
	db, mock, cleanup := newDoctorRepoMock(t)
	defer cleanup()
	repo := NewDoctorRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "phone", "specialty", "day_from", "day_to", "work_start", "work_end", "slot_minutes", "active", "created_at", "updated_at"}).
		AddRow("d1", "dr@example.com", "Dr. A", nil, nil, 1, 5, "08:00", "16:00", 30, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name, phone, specialty, day_from, day_to, work_start, work_end, slot_minutes, active, created_at, updated_at FROM doctors WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM doctors WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.DoctorFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newDoctorRepoMock(t)
	defer cleanup()
	repo := NewDoctorRepository(db)

	mock.ExpectExec("INSERT INTO doctors").
		WithArgs(sqlmock.AnyArg(), "dr@example.com", "Dr. A", sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 5, "08:00", "16:00", 30, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doctor := &models.Doctor{
		Email:       "dr@example.com",
		FullName:    "Dr. A",
		DayFrom:     1,
		DayTo:       5,
		WorkStart:   "08:00",
		WorkEnd:     "16:00",
		SlotMinutes: 30,
		Active:      true,
	}
	require.NoError(t, repo.Create(context.Background(), doctor))
	assert.NotEmpty(t, doctor.ID)

	mock.ExpectExec("UPDATE doctors SET active = FALSE").
		WithArgs("d1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newDoctorRepoMock(t)
	defer cleanup()
	repo := NewDoctorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM doctors WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("dr@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "dr@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
