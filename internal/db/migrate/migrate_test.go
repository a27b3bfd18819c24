package migrate

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/db/migrations"
)

var testFS = fstest.MapFS{
	"001_accounts.sql":          {Data: []byte("CREATE TABLE accounts (id uuid)")},
	"001_accounts_down.sql":     {Data: []byte("DROP TABLE accounts")},
	"002_appointments.sql":      {Data: []byte("CREATE TABLE appointments (id uuid)")},
	"002_appointments_down.sql": {Data: []byte("DROP TABLE appointments")},
	"README.md":                 {Data: []byte("ignored")},
	"abc_bad.sql":               {Data: []byte("ignored")},
}

func setupManager(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Manager) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewManager(db, testFS, zap.NewNop())
}

func TestLoadMigrations(t *testing.T) {
	db, _, m := setupManager(t)
	defer db.Close()

	migs, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migs, 2)

	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "accounts", migs[0].Name)
	assert.Equal(t, "CREATE TABLE accounts (id uuid)", migs[0].UpSQL)
	assert.Equal(t, "DROP TABLE accounts", migs[0].DownSQL)
	assert.Equal(t, 2, migs[1].Version)
	assert.Equal(t, "appointments", migs[1].Name)
}

func TestLoadMigrations_EmbeddedSchema(t *testing.T) {
	m := NewManager(nil, migrations.FS, zap.NewNop())

	migs, err := m.LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)

	for _, mig := range migs {
		assert.NotEmpty(t, mig.UpSQL, "migration %d", mig.Version)
		assert.NotEmpty(t, mig.DownSQL, "migration %d", mig.Version)
	}
	assert.Contains(t, migs[1].UpSQL, "WHERE status = 'SCHEDULED'")
}

func TestInitialize(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.Initialize(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_AppliesOnlyPending(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE appointments (id uuid)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)")).
		WithArgs(2, "appointments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_RollsBackOnFailure(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE accounts (id uuid)")).
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	n, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_RollsBackLatest(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).
			AddRow(1, time.Now()).
			AddRow(2, time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE appointments")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schema_migrations WHERE version = $1")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Down(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_NothingApplied(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))

	assert.EqualError(t, m.Down(context.Background()), "no migrations to roll back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus(t *testing.T) {
	db, mock, m := setupManager(t)
	defer db.Close()

	appliedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, appliedAt))

	migs, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, migs, 2)
	require.NotNil(t, migs[0].AppliedAt)
	assert.True(t, appliedAt.Equal(*migs[0].AppliedAt))
	assert.Nil(t, migs[1].AppliedAt)
}
