package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsEmbedded(t *testing.T) {
	migrations, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 2)
	require.Equal(t, 1, migrations[0].version)
	require.Equal(t, "001_initial", migrations[0].name)
	require.Contains(t, migrations[0].sql, "deletion_tickets")
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_late.up.sql":  {Data: []byte("SELECT 10")},
		"migrations/002_early.up.sql": {Data: []byte("SELECT 2")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Equal(t, []int{2, 10}, []int{migrations[0].version, migrations[1].version})
	require.Equal(t, 10, lastVersion(migrations))
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	t.Run("missing version", func(t *testing.T) {
		_, err := loadMigrations(fstest.MapFS{"migrations/initial.up.sql": {Data: []byte("SELECT 1")}})
		require.ErrorContains(t, err, "version prefix")
	})

	t.Run("duplicate version", func(t *testing.T) {
		_, err := loadMigrations(fstest.MapFS{
			"migrations/003_a.up.sql": {Data: []byte("SELECT 1")},
			"migrations/003_b.up.sql": {Data: []byte("SELECT 2")},
		})
		require.ErrorContains(t, err, "duplicate migration version 3")
	})
}
