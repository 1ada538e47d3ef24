package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestFollowRepository_CreateIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRelationshipRepository(db)

	insert := regexp.QuoteMeta("INSERT INTO follows (follower_id, followee_id)")
	mock.ExpectExec(insert).WithArgs(int64(1), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(int64(1), int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowRepository_DeleteMissingIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRelationshipRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM follows")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowRepository_CheckFollows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRelationshipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT followee_id FROM follows")).
		WillReturnRows(sqlmock.NewRows([]string{"followee_id"}).AddRow(int64(3)))

	got, err := repo.CheckFollows(context.Background(), 1, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{2: false, 3: true}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowRepository_CheckFollowsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRelationshipRepository(db)

	got, err := repo.CheckFollows(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowRepository_CountFollowers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRelationshipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM follows WHERE followee_id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := repo.CountFollowers(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRelationshipRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRelationshipRepository()

	created, _ := repo.Create(ctx, 1, 99)
	assert.True(t, created)
	created, _ = repo.Create(ctx, 1, 99)
	assert.False(t, created)
	_, _ = repo.Create(ctx, 2, 99)

	n, _ := repo.CountFollowers(ctx, 99)
	assert.Equal(t, int64(2), n)

	status, _ := repo.CheckFollows(ctx, 1, []int64{99, 100})
	assert.Equal(t, map[int64]bool{99: true, 100: false}, status)

	removed, _ := repo.Delete(ctx, 1, 99)
	assert.True(t, removed)
	removed, _ = repo.Delete(ctx, 1, 99)
	assert.False(t, removed)

	exists, _ := repo.Exists(ctx, 1, 99)
	assert.False(t, exists)
}
