// internal/archive/archive_test.go
package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestArchive(t *testing.T) (*PostgresArchive, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	arch := New(db, logger.NewTestLogger(t))
	arch.now = func() time.Time {
		return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	return arch, mock
}

func decidedApplication() models.Application {
	return models.Application{
		ID: "app-001",
		UserInfo: models.Applicant{
			UserID:    111,
			FirstName: "أحمد",
			LastName:  "علي",
			Username:  "ahmed_ali",
		},
		SelectedTeam: "team_exams",
		TeamName:     "تيم الاختبارات",
		Gender:       "male",
		Reason:       "أريد المساهمة في إعداد الاختبارات",
		Experience:   "خبرة سنتين في التدريس",
		Timestamp:    "2025-05-30T09:00:00Z",
		Status:       models.StatusAccepted,
		DecidedBy:    "مشرف التيم",
		DecidedAt:    "2025-05-31T12:00:00Z",
	}
}

// ==========================
// Tests
// ==========================

func TestArchiveDecision_InsertsRow(t *testing.T) {
	arch, mock := newTestArchive(t)

	mock.ExpectExec(`INSERT INTO decisions`).
		WithArgs(
			sqlmock.AnyArg(), // row ID (UUID)
			"app-001",
			int64(111),
			"team_exams",
			"accepted",
			"مشرف التيم",
			"2025-05-31T12:00:00Z",
			sqlmock.AnyArg(), // JSON payload
			"2025-06-01T10:00:00Z",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := arch.ArchiveDecision(context.Background(), decidedApplication())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveDecision_MissingDecidedAtUsesClock(t *testing.T) {
	arch, mock := newTestArchive(t)

	mock.ExpectExec(`INSERT INTO decisions`).
		WithArgs(
			sqlmock.AnyArg(),
			"app-001",
			int64(111),
			"team_exams",
			"rejected",
			"مشرف التيم",
			"2025-06-01T10:00:00Z", // falls back to the archive clock
			sqlmock.AnyArg(),
			"2025-06-01T10:00:00Z",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := decidedApplication()
	app.Status = models.StatusRejected
	app.DecidedAt = ""

	err := arch.ArchiveDecision(context.Background(), app)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveDecision_InsertError(t *testing.T) {
	arch, mock := newTestArchive(t)

	mock.ExpectExec(`INSERT INTO decisions`).
		WillReturnError(errors.New("connection refused"))

	err := arch.ArchiveDecision(context.Background(), decidedApplication())

	require.Error(t, err)
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeArchiveFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_CreatesTable(t *testing.T) {
	arch, mock := newTestArchive(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS decisions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := arch.EnsureSchema(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	arch, mock := newTestArchive(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS decisions`).
		WillReturnError(errors.New("permission denied"))

	err := arch.EnsureSchema(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create decisions table")
}
