package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestManagersImplementInterface(t *testing.T) {
	db, _ := newDB(t)

	var _ RepositoryManager = NewPostgresRepositoryManager(db)
	var _ RepositoryManager = NewMemoryRepositoryManager()

	var _ users.Repository = NewPostgresRepositoryManager(db).Users()
}

func TestRunInTx_Commit(t *testing.T) {
	db, mock := newDB(t)
	m := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+is_admin`).WithArgs("boss@x.com").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.RunInTx(context.Background(), func(ctx context.Context, repo users.Repository) error {
		return repo.SetAdmin(ctx, "boss@x.com")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	db, mock := newDB(t)
	m := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := m.RunInTx(context.Background(), func(context.Context, users.Repository) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if got != db {
			return errors.New("unexpected db")
		}
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}

	require.NoError(t, NewPostgresRepositoryManager(db).RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	err := NewPostgresRepositoryManager(db).RunMigrations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestOpenPostgres_InvalidDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}
