package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foster-pipeline-api/pkg/storage"
)

func newKVMock(t *testing.T) (*PostgresKV, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresKV(sqlxDB, "foster:"), mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlxDB.Close()
	}
}

func TestPostgresKVGet(t *testing.T) {
	repo, mock, cleanup := newKVMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("foster:pending_status_updates_v1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"a@x.org":"approved"}`)))

	got, err := repo.Get(context.Background(), "pending_status_updates_v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a@x.org":"approved"}`, string(got))
}

func TestPostgresKVGetMissing(t *testing.T) {
	repo, mock, cleanup := newKVMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("foster:people_v2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "people_v2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresKVGetFailure(t *testing.T) {
	repo, mock, cleanup := newKVMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("foster:people_v2").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), "people_v2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresKVSetAndRemove(t *testing.T) {
	repo, mock, cleanup := newKVMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("foster:people_v2", []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM kv_store").
		WithArgs("foster:people_v2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), "people_v2", []byte(`[]`)))
	require.NoError(t, repo.Remove(context.Background(), "people_v2"))
}

func TestPostgresKVEnsureSchema(t *testing.T) {
	repo, mock, cleanup := newKVMock(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
}
