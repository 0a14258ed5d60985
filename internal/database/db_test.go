package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clinic.sqlite")

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, AutoMigrate(db))
	require.FileExists(t, path)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty path", path: "", want: "file::memory:?_busy_timeout=5000&_foreign_keys=1&cache=shared"},
		{name: "memory keyword", path: ":MEMORY:", want: "file::memory:?_busy_timeout=5000&_foreign_keys=1&cache=shared"},
		{name: "file", path: "data/clinic.sqlite", want: "file:data/clinic.sqlite?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sqliteDSN(tt.path))
		})
	}
}

func TestOpenSQLiteAppliesPragmas(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "clinic.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var busyTimeout, foreignKeys int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&busyTimeout).Error)
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	require.Equal(t, 5000, busyTimeout)
	require.Equal(t, 1, foreignKeys)

	var journal string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journal).Error)
	require.Equal(t, "wal", journal)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, model := range Models() {
		require.True(t, migrator.HasTable(model), "expected table for %T to exist", model)
	}
	require.True(t, migrator.HasColumn(&models.User{}, "last_connected_at"))
	require.True(t, migrator.HasIndex(&models.User{}, "Email"))
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
