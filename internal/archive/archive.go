// internal/archive/archive.go
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"

	"github.com/google/uuid"
)

// PostgresArchive copies reviewer decisions into a relational table for
// long-term reporting. The JSON store stays authoritative; the archive is
// write-only from the bot's side and a failed insert never blocks the
// decision flow.
type PostgresArchive struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

// New creates an archive backed by the given database handle.
func New(db *sql.DB, log logger.Logger) *PostgresArchive {
	return &PostgresArchive{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "archive"}),
		now:    time.Now,
	}
}

// EnsureSchema creates the decisions table when it does not exist yet.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS decisions (
			id             UUID PRIMARY KEY,
			application_id TEXT NOT NULL,
			applicant_id   BIGINT NOT NULL,
			team_id        TEXT NOT NULL,
			decision       TEXT NOT NULL,
			decided_by     TEXT NOT NULL,
			decided_at     TIMESTAMPTZ NOT NULL,
			payload        JSONB NOT NULL,
			archived_at    TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create decisions table: %w", err)
	}
	return nil
}

// ArchiveDecision inserts one decided application. The full record is kept
// as a JSONB payload next to the indexed columns.
func (a *PostgresArchive) ArchiveDecision(ctx context.Context, app models.Application) error {
	payload, err := json.Marshal(app)
	if err != nil {
		return apperrors.NewArchiveFailedError(fmt.Errorf("marshal application: %w", err))
	}

	rowID := uuid.New().String()
	decidedAt := app.DecidedAt
	if decidedAt == "" {
		decidedAt = models.FormatTimestamp(a.now())
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, application_id, applicant_id, team_id,
			decision, decided_by, decided_at, payload, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rowID,
		app.ID,
		app.UserInfo.UserID,
		app.SelectedTeam,
		app.Status,
		app.DecidedBy,
		decidedAt,
		payload,
		models.FormatTimestamp(a.now()),
	)
	if err != nil {
		return apperrors.NewArchiveFailedError(err)
	}

	a.logger.Info("decision archived", map[string]interface{}{
		"rowId":         rowID,
		"applicationId": app.ID,
		"applicantId":   app.UserInfo.UserID,
		"team":          app.SelectedTeam,
		"decision":      app.Status,
	})
	return nil
}
