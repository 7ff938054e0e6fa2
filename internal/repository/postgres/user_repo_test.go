package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/repository/postgres"
)

const revokeToken = `INSERT INTO revoked_tokens \(jti, user_id, expires_at\)`

func TestUserRepo_RevokeToken_FirstWriterWins(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewUserRepo(db)
	userID := uuid.New()
	exp := time.Now().Add(time.Hour)

	mock.ExpectExec(revokeToken).WithArgs("jti-1", userID, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(revokeToken).WithArgs("jti-1", userID, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.RevokeToken(context.Background(), "jti-1", userID, exp)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.RevokeToken(context.Background(), "jti-1", userID, exp)
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RevokeToken_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewUserRepo(db)
	mock.ExpectExec(revokeToken).WillReturnError(errors.New("deadlock detected"))

	_, err := repo.RevokeToken(context.Background(), "jti-1", uuid.New(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userRepo.RevokeToken")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_IsTokenRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewUserRepo(db)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM revoked_tokens WHERE jti = \$1\)`).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("jti-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	revoked, err := repo.IsTokenRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = repo.IsTokenRevoked(context.Background(), "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}
