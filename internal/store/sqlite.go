package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/crudst/internal/schema"
)

var sqliteDialect = &dialect{
	name:        "sqlite",
	quote:       doubleQuote,
	placeholder: questionPlaceholder,
	identity:    "INTEGER PRIMARY KEY AUTOINCREMENT",
	types: map[schema.Type]string{
		schema.Boolean: "BOOLEAN",
		schema.Integer: "INTEGER",
		schema.Float:   "REAL",
		schema.String:  fmt.Sprintf("VARCHAR(%d)", schema.StringCapacity),
	},
	listTables: `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`,
	insertDefault: "INSERT INTO %s DEFAULT VALUES",
	maxParams:     999,
}

// NewSQLiteAdapter opens (creating if needed) the SQLite database at path
func NewSQLiteAdapter(ctx context.Context, path string) (*SQLAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: SQLite database path is required", ErrConnectionFailure)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SQLite database: %w", ErrConnectionFailure, err)
	}
	// SQLite allows a single writer; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping SQLite: %w", ErrConnectionFailure, err)
	}

	return newSQLAdapter(db, sqliteDialect), nil
}
