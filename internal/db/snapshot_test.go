package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, EnsureSchema(context.Background(), database))
	return database
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "lost_found.db")

	source := newMemoryDB(t)
	_, err := source.ExecContext(ctx,
		`INSERT INTO items (id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"a1", "lost", "Umbrella", "Cafeteria", nil, "5550001111", nil, 100, 100)
	require.NoError(t, err)

	require.NoError(t, WriteSnapshot(ctx, source, path))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not be left behind")

	target := newMemoryDB(t)
	loaded, err := LoadSnapshot(ctx, target, path)
	require.NoError(t, err)
	assert.True(t, loaded)

	var name string
	var description *string
	require.NoError(t, target.QueryRowContext(ctx, `SELECT itemName, description FROM items WHERE id = ?`, "a1").Scan(&name, &description))
	assert.Equal(t, "Umbrella", name)
	assert.Nil(t, description)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	target := newMemoryDB(t)
	loaded, err := LoadSnapshot(context.Background(), target, filepath.Join(t.TempDir(), "absent.db"))
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o600))

	target := newMemoryDB(t)
	_, err := LoadSnapshot(context.Background(), target, path)
	assert.Error(t, err)
}

func TestWriteSnapshotReplacesStaleTemp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lost_found.db")
	require.NoError(t, os.WriteFile(path+".tmp", []byte("leftover"), 0o600))

	source := newMemoryDB(t)
	require.NoError(t, WriteSnapshot(ctx, source, path))

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	var count int
	require.NoError(t, ro.QueryRowContext(ctx, `SELECT COUNT(1) FROM items`).Scan(&count))
	assert.Zero(t, count)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingURL)
	assert.ErrorIs(t, MigrateURL(""), ErrMissingURL)
}

func TestUnicodeLowerFunction(t *testing.T) {
	database := newMemoryDB(t)

	var got string
	require.NoError(t, database.QueryRow(`SELECT `+LowerFunc+`('ÉCHARPE Rouge')`).Scan(&got))
	assert.Equal(t, "écharpe rouge", got)

	var null sql.NullString
	require.NoError(t, database.QueryRow(`SELECT `+LowerFunc+`(NULL)`).Scan(&null))
	assert.False(t, null.Valid)
}
