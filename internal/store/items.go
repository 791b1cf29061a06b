package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/types"
)

// itemRepository runs the item statements against any database/sql handle,
// rendering placeholders through the backend's dialect.
type itemRepository struct {
	db      *sql.DB
	dialect query.Dialect
}

func (r *itemRepository) bind(statement string) string {
	if r.dialect == query.DialectSQLite {
		return statement
	}
	var b strings.Builder
	n := 0
	for _, ch := range statement {
		if ch == '?' {
			n++
			b.WriteString(r.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *itemRepository) List(ctx context.Context, filter query.Filter) ([]types.Item, error) {
	statement, args := query.BuildList(r.dialect, filter)
	rows, err := r.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) Get(ctx context.Context, id string) (types.Item, error) {
	statement := r.bind(`SELECT ` + query.ItemColumns + ` FROM items WHERE id = ?`)
	item, err := scanItem(r.db.QueryRowContext(ctx, statement, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

func (r *itemRepository) Insert(ctx context.Context, item types.Item) error {
	statement := r.bind(`
		INSERT INTO items (id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(
		ctx,
		statement,
		item.ID,
		string(item.Type),
		item.ItemName,
		item.Location,
		item.Description,
		item.Contact,
		item.ImageURL,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return err
}

func (r *itemRepository) UpdateDescription(ctx context.Context, id, description string, now int64) error {
	statement := r.bind(`UPDATE items SET description = ?, updatedAt = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, statement, description, now, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	statement := r.bind(`DELETE FROM items WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, statement, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *itemRepository) Count(ctx context.Context) (int, error) {
	const countQuery = `SELECT COUNT(1) FROM items`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var (
		item     types.Item
		itemType string
		imageURL sql.NullString
		created  sql.NullInt64
		updated  sql.NullInt64
	)
	if err := row.Scan(
		&item.ID,
		&itemType,
		&item.ItemName,
		&item.Location,
		&item.Description,
		&item.Contact,
		&imageURL,
		&created,
		&updated,
	); err != nil {
		return types.Item{}, err
	}
	// Imported rows may carry NULL timestamps.
	item.CreatedAt = created.Int64
	item.UpdatedAt = updated.Int64
	item.Type = types.ItemType(itemType)
	if imageURL.Valid && imageURL.String != "" {
		url := imageURL.String
		item.ImageURL = &url
	}
	return item, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
