// Package migration copies the snapshot backend's items into Postgres.
package migration

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lostfound/apiserver/internal/db"
)

// Row is one item as read from a snapshot. Everything except id and type
// may be absent in snapshots written by older releases.
type Row struct {
	ID          string
	Type        string
	ItemName    *string
	Location    *string
	Description *string
	Contact     *string
	ImageURL    *string
	CreatedAt   *int64
	UpdatedAt   *int64
}

const selectRows = `SELECT id, type, itemName, location, description, contact, imageUrl, createdAt, updatedAt FROM items`

// ReadSnapshot opens the snapshot file read-only and returns every row.
func ReadSnapshot(ctx context.Context, path string) ([]Row, error) {
	conn, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, selectRows)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r                  Row
			id, typ            any
			name, loc, desc    any
			contact, imageURL  any
			createdAt, updated any
		)
		if err := rows.Scan(&id, &typ, &name, &loc, &desc, &contact, &imageURL, &createdAt, &updated); err != nil {
			return nil, err
		}
		r.ID = text(id)
		r.Type = text(typ)
		if r.ID == "" {
			continue
		}
		r.ItemName = optionalText(name)
		r.Location = optionalText(loc)
		r.Description = optionalText(desc)
		r.Contact = optionalText(contact)
		r.ImageURL = optionalText(imageURL)
		r.CreatedAt = millis(createdAt)
		r.UpdatedAt = millis(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func optionalText(v any) *string {
	if v == nil {
		return nil
	}
	s := text(v)
	return &s
}

// millis coerces a stored timestamp to epoch milliseconds. Missing, zero
// and unparseable values become nil.
func millis(v any) *int64 {
	var n int64
	switch t := v.(type) {
	case int64:
		n = t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int64(t)
	case string, []byte:
		s := strings.TrimSpace(text(t))
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			n = parsed
		} else if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n = int64(f)
		}
	}
	if n == 0 {
		return nil
	}
	return &n
}
