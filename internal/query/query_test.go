package query

import (
	"net/url"
	"strings"
	"testing"

	"github.com/lostfound/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Filter
	}{
		{"defaults", "", Filter{Limit: DefaultLimit}},
		{"valid type", "type=found", Filter{Type: types.ItemTypeFound, Limit: DefaultLimit}},
		{"invalid type ignored", "type=all", Filter{Limit: DefaultLimit}},
		{"search trimmed", "search=%20wallet%20", Filter{Search: "wallet", Limit: DefaultLimit}},
		{"pagination", "limit=10&offset=20", Filter{Limit: 10, Offset: 20}},
		{"negative pagination", "limit=-1&offset=-5", Filter{Limit: DefaultLimit}},
		{"garbage pagination", "limit=ten&offset=x", Filter{Limit: DefaultLimit}},
		{"limit capped", "limit=100000", Filter{Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ParseFilter(values))
		})
	}
}

func TestBuildListNoFilter(t *testing.T) {
	sql, args := BuildList(DialectSQLite, Filter{})
	assert.Equal(t, "SELECT "+ItemColumns+" FROM items ORDER BY createdAt DESC LIMIT ? OFFSET ?", sql)
	assert.Equal(t, []any{DefaultLimit, 0}, args)
}

func TestBuildListPostgresPlaceholders(t *testing.T) {
	sql, args := BuildList(DialectPostgres, Filter{Type: types.ItemTypeLost, Search: "Key", Limit: 5, Offset: 10})

	assert.Contains(t, sql, "type = $1")
	assert.Contains(t, sql, "lower(itemName) LIKE $2")
	assert.Contains(t, sql, "lower(location) LIKE $3")
	assert.Contains(t, sql, "lower(COALESCE(description, '')) LIKE $4")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY createdAt DESC LIMIT $5 OFFSET $6"), sql)
	assert.Equal(t, []any{"lost", "%key%", "%key%", "%key%", 5, 10}, args)
}

func TestBuildListSQLiteFoldsUnicode(t *testing.T) {
	sql, args := BuildList(DialectSQLite, Filter{Search: "ÉCHARPE"})

	assert.Contains(t, sql, "unicode_lower(itemName) LIKE ?")
	assert.Contains(t, sql, "unicode_lower(location) LIKE ?")
	assert.Contains(t, sql, "unicode_lower(COALESCE(description, '')) LIKE ?")
	assert.NotContains(t, sql, " lower(")
	assert.Equal(t, "%écharpe%", args[0])
}

func TestBuildListKeepsInputOutOfSQL(t *testing.T) {
	hostile := "'; DROP TABLE items; --"
	sql, args := BuildList(DialectSQLite, Filter{Search: hostile})

	assert.NotContains(t, sql, "DROP TABLE")
	assert.Equal(t, 3, strings.Count(sql, "LIKE ?"))
	assert.Equal(t, "%"+strings.ToLower(hostile)+"%", args[0])
}

func TestBuildListEscapesWildcards(t *testing.T) {
	_, args := BuildList(DialectSQLite, Filter{Search: "100%_off"})
	assert.Equal(t, `%100\%\_off%`, args[0])
}

func TestFilterMatches(t *testing.T) {
	item := types.Item{Type: types.ItemTypeLost, ItemName: "Blue Backpack", Location: "Library", Description: "has a keychain"}

	assert.True(t, Filter{}.Matches(item))
	assert.True(t, Filter{Type: types.ItemTypeLost}.Matches(item))
	assert.False(t, Filter{Type: types.ItemTypeFound}.Matches(item))
	assert.True(t, Filter{Search: "backpack"}.Matches(item))
	assert.True(t, Filter{Search: "LIBRARY"}.Matches(item))
	assert.True(t, Filter{Search: "keychain"}.Matches(item))
	assert.False(t, Filter{Search: "umbrella"}.Matches(item))
}
