// Package query turns the listing filter accepted by the API into a
// parameterized SELECT for either item store backend. User input only ever
// reaches the database as bound arguments.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/lostfound/apiserver/types"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ItemColumns is the column list shared by every item SELECT, in scan order.
const ItemColumns = `id, type, COALESCE(itemName, ''), COALESCE(location, ''), COALESCE(description, ''), COALESCE(contact, ''), imageUrl, createdAt, updatedAt`

// Dialect renders bind placeholders for a backend.
type Dialect interface {
	// Placeholder returns the marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// Lower wraps expr in the backend's Unicode case-folding function.
	Lower(expr string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(int) string { return "?" }

// Lower uses the unicode_lower function registered by internal/db; the
// built-in lower() only folds ASCII.
func (sqliteDialect) Lower(expr string) string { return "unicode_lower(" + expr + ")" }

type postgresDialect struct{}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) Lower(expr string) string { return "lower(" + expr + ")" }

var (
	DialectSQLite   Dialect = sqliteDialect{}
	DialectPostgres Dialect = postgresDialect{}
)

// Filter is the logical listing query: optional type, free-text search and
// pagination. The zero value lists the first DefaultLimit items.
type Filter struct {
	Type   types.ItemType
	Search string
	Limit  int
	Offset int
}

// ParseFilter reads type, search, limit and offset from query parameters.
// An unknown type is ignored and malformed pagination falls back to defaults.
func ParseFilter(values url.Values) Filter {
	var f Filter
	if itemType, ok := types.ParseItemType(values.Get("type")); ok {
		f.Type = itemType
	}
	f.Search = strings.TrimSpace(values.Get("search"))
	f.Limit = parseNonNegative(values.Get("limit"), DefaultLimit)
	f.Offset = parseNonNegative(values.Get("offset"), 0)
	return f.Normalize()
}

// Normalize clamps pagination into its valid range.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if _, ok := types.ParseItemType(string(f.Type)); !ok {
		f.Type = ""
	}
	return f
}

// Matches reports whether item satisfies the type and search parts of the
// filter, using the same case-insensitive substring rule as the SQL.
func (f Filter) Matches(item types.Item) bool {
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(item.ItemName), term) ||
		strings.Contains(strings.ToLower(item.Location), term) ||
		strings.Contains(strings.ToLower(item.Description), term)
}

// BuildList renders the listing SELECT for the dialect. Rows are ordered by
// createdAt descending; the order of items with equal timestamps is left to
// the backend.
func BuildList(d Dialect, f Filter) (string, []any) {
	f = f.Normalize()

	var (
		args  []any
		where []string
		b     strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if f.Type != "" {
		where = append(where, "type = "+place(string(f.Type)))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		where = append(where, "("+d.Lower("itemName")+" LIKE "+place(pattern)+` ESCAPE '\'`+
			" OR "+d.Lower("location")+" LIKE "+place(pattern)+` ESCAPE '\'`+
			" OR "+d.Lower("COALESCE(description, '')")+" LIKE "+place(pattern)+` ESCAPE '\')`)
	}

	b.WriteString("SELECT ")
	b.WriteString(ItemColumns)
	b.WriteString(" FROM items")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY createdAt DESC LIMIT ")
	b.WriteString(place(f.Limit))
	b.WriteString(" OFFSET ")
	b.WriteString(place(f.Offset))

	return b.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func parseNonNegative(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
