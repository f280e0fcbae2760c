package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

func TestParseMigrationFilename(t *testing.T) {
	t.Run("up file", func(t *testing.T) {
		version, name, direction, err := parseMigrationFilename("003_create_entrances.up.sql")
		require.NoError(t, err)
		assert.Equal(t, 3, version)
		assert.Equal(t, "create_entrances", name)
		assert.Equal(t, "up", direction)
	})

	t.Run("down file", func(t *testing.T) {
		_, _, direction, err := parseMigrationFilename("003_create_entrances.down.sql")
		require.NoError(t, err)
		assert.Equal(t, "down", direction)
	})

	for _, bad := range []string{"README.md", "001_init.sql", "init.up.sql", "abc_init.up.sql"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, _, _, err := parseMigrationFilename(bad)
			assert.Error(t, err)
		})
	}
}

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"files/001_init.up.sql":     {Data: []byte("CREATE TABLE a (id INT);")},
		"files/001_init.down.sql":   {Data: []byte("DROP TABLE a;")},
		"files/002_more.up.sql":     {Data: []byte("CREATE TABLE b (id INT);")},
		"files/notes.txt":           {Data: []byte("ignored")},
		"files/003_orphan.down.sql": {Data: []byte("DROP TABLE c;")},
	}
}

func TestMigrationRunner_RunMigrations(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations in order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(version) FROM schema_migrations")).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(1)))

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "more").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		runner := NewMigrationRunner(db, logger.New("debug", "test"))
		applied, err := runner.RunMigrations(ctx, migrationFS(), "files")

		require.NoError(t, err)
		assert.Equal(t, 1, applied)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(version) FROM schema_migrations")).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		runner := NewMigrationRunner(db, logger.New("debug", "test"))
		_, err = runner.RunMigrations(ctx, migrationFS(), "files")

		assert.ErrorContains(t, err, "001_init")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		assert.NoError(t, WithTx(ctx, db, func(tx *sql.Tx) error { return nil }))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = WithTx(ctx, db, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
