package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/domain"
	"dealdossier/internal/repository/postgres"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

const (
	updateFile    = `UPDATE files SET insights = \$1::jsonb, upload_status = \$2`
	clearEvidence = `DELETE FROM evidence WHERE file_id = \$1`
	insertEvid    = `INSERT INTO evidence \(id, file_id, content, confidence, created_at\)`
)

func TestInsightStore_SaveInsight_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewInsightStore(db)
	fileID := uuid.New()
	insight := []byte(`{"type":"json","keyCount":1}`)
	evidence := []domain.Evidence{
		{Content: "Revenue: $2.4M", Confidence: 0.95},
		{Content: "EBITDA: $450K", Confidence: 1.7},
	}

	mock.ExpectBegin()
	mock.ExpectExec(updateFile).
		WithArgs(string(insight), domain.FileStatusCompleted, sqlmock.AnyArg(), fileID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clearEvidence).WithArgs(fileID).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(insertEvid).
		WithArgs(sqlmock.AnyArg(), fileID, "Revenue: $2.4M", 0.95, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEvid).
		WithArgs(sqlmock.AnyArg(), fileID, "EBITDA: $450K", 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveInsight(context.Background(), fileID, insight, evidence)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	for _, ev := range evidence {
		assert.NotEqual(t, uuid.Nil, ev.ID)
		assert.Equal(t, fileID, ev.FileID)
		assert.WithinDuration(t, time.Now(), ev.CreatedAt, time.Minute)
	}
}

func TestInsightStore_SaveInsight_EvidenceFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewInsightStore(db)
	fileID := uuid.New()
	cause := errors.New("value too long for type")

	mock.ExpectBegin()
	mock.ExpectExec(updateFile).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(clearEvidence).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertEvid).WillReturnError(cause)
	mock.ExpectRollback()

	err := store.SaveInsight(context.Background(), fileID, []byte(`{}`), []domain.Evidence{{Content: "x", Confidence: 0.5}})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsightStore_SaveInsight_MissingFile(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewInsightStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(updateFile).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SaveInsight(context.Background(), uuid.New(), []byte(`{}`), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsightStore_SaveInsight_BeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewInsightStore(db)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	err := store.SaveInsight(context.Background(), uuid.New(), []byte(`{}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insightStore.SaveInsight begin")
	require.NoError(t, mock.ExpectationsWereMet())
}
