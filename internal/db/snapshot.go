package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite "modernc.org/sqlite"
)

// LowerFunc is a Unicode-aware replacement for SQLite's lower(), which only
// folds ASCII. It is registered on every connection the driver opens.
const LowerFunc = "unicode_lower"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(LowerFunc, 1, unicodeLower); err != nil {
		panic(fmt.Sprintf("register %s: %v", LowerFunc, err))
	}
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// itemsSchema is the SQLite item table. It matches the Postgres migration
// column for column so snapshots can be imported as-is.
const itemsSchema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL CHECK (type IN ('lost', 'found')),
    itemName    TEXT NOT NULL,
    location    TEXT NOT NULL,
    description TEXT,
    contact     TEXT NOT NULL,
    imageUrl    TEXT,
    createdAt   INTEGER NOT NULL,
    updatedAt   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_created_at ON items (createdAt DESC);
`

// OpenMemory opens a private in-memory SQLite database. The pool is pinned to
// a single connection that is never recycled, because closing it would
// discard the database.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragma: %w", err)
	}
	return db, nil
}

// OpenReadOnly opens an existing snapshot file without modifying it.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the item table if it doesn't already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, itemsSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// LoadSnapshot copies every row of the snapshot file at path into the items
// table of db. It reports false when there is no file to load.
func LoadSnapshot(ctx context.Context, db *sql.DB, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat snapshot: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS snapshot`, path); err != nil {
		return false, fmt.Errorf("attach snapshot: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `DETACH DATABASE snapshot`)
	}()

	const copyRows = `
		INSERT INTO main.items (id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt)
		SELECT id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt
		FROM snapshot.items`
	if _, err := conn.ExecContext(ctx, copyRows); err != nil {
		return false, fmt.Errorf("load snapshot rows: %w", err)
	}
	return true, nil
}

// WriteSnapshot serializes the whole database to path. The image is written
// to a sibling temp file, synced and renamed over path, so readers see either
// the previous snapshot or the new one, never a partial file.
func WriteSnapshot(ctx context.Context, db *sql.DB, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale snapshot: %w", err)
	}

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	if err := syncFile(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return f.Close()
}
