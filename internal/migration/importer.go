package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BatchSize is the number of rows committed per transaction.
const BatchSize = 500

// targetSchema accepts rows that the serving schema would reject, so an
// import never stops on a legacy row. It is a no-op when the table exists.
const targetSchema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    itemName    TEXT,
    location    TEXT,
    description TEXT,
    contact     TEXT,
    imageUrl    TEXT,
    createdAt   BIGINT,
    updatedAt   BIGINT
)`

const upsertRow = `INSERT INTO items (id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// Result summarises an import run.
type Result struct {
	Read     int
	Inserted int
	Skipped  int
	Batches  int
}

// Importer replays snapshot rows into Postgres.
type Importer struct {
	conn      *pgx.Conn
	batchSize int
	logger    *zap.Logger
}

func NewImporter(conn *pgx.Conn, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{conn: conn, batchSize: BatchSize, logger: logger}
}

// Import inserts rows in batches, one transaction per batch. Rows whose id
// already exists are skipped, so a rerun after a partial failure resumes
// where the last committed batch ended. The returned Result covers every
// batch committed before an error.
func (im *Importer) Import(ctx context.Context, rows []Row) (Result, error) {
	res := Result{Read: len(rows)}
	if _, err := im.conn.Exec(ctx, targetSchema); err != nil {
		return res, fmt.Errorf("ensure items table: %w", err)
	}

	return im.importAll(ctx, res, rows, im.importBatch)
}

// batchFunc inserts one batch and reports how many rows were new.
type batchFunc func(ctx context.Context, rows []Row) (int, error)

func (im *Importer) importAll(ctx context.Context, res Result, rows []Row, insert batchFunc) (Result, error) {
	for start := 0; start < len(rows); start += im.batchSize {
		end := min(start+im.batchSize, len(rows))
		inserted, err := insert(ctx, rows[start:end])
		if err != nil {
			return res, fmt.Errorf("batch %d (rows %d-%d): %w", res.Batches+1, start+1, end, err)
		}
		res.Batches++
		res.Inserted += inserted
		res.Skipped += (end - start) - inserted
		im.logger.Info("batch committed",
			zap.Int("batch", res.Batches),
			zap.Int("rows", end),
			zap.Int("inserted", inserted))
	}
	return res, nil
}

func (im *Importer) importBatch(ctx context.Context, rows []Row) (int, error) {
	tx, err := im.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertRow, r.ID, r.Type, r.ItemName, r.Location, r.Description, r.Contact, r.ImageURL, r.CreatedAt, r.UpdatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for _, r := range rows {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("insert %s: %w", r.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Run reads the snapshot at snapshotPath and imports it into databaseURL.
func Run(ctx context.Context, snapshotPath, databaseURL string, logger *zap.Logger) (Result, error) {
	rows, err := ReadSnapshot(ctx, snapshotPath)
	if err != nil {
		return Result{}, err
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return Result{}, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	return NewImporter(conn, logger).Import(ctx, rows)
}
