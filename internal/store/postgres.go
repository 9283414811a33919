package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tordrt/crudst/internal/schema"
)

var postgresDialect = &dialect{
	name:        "postgres",
	quote:       doubleQuote,
	placeholder: dollarPlaceholder,
	identity:    "INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
	types: map[schema.Type]string{
		schema.Boolean: "BOOLEAN",
		schema.Integer: "INTEGER",
		schema.Float:   "DOUBLE PRECISION",
		schema.String:  fmt.Sprintf("VARCHAR(%d)", schema.StringCapacity),
	},
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`,
	insertDefault: "INSERT INTO %s DEFAULT VALUES",
	maxParams:     65535,
}

// NewPostgresAdapter connects to PostgreSQL through pgx
func NewPostgresAdapter(ctx context.Context, connString string) (*SQLAdapter, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid PostgreSQL connection string: %w", ErrConnectionFailure, err)
	}

	db := stdlib.OpenDB(*cfg)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping PostgreSQL: %w", ErrConnectionFailure, err)
	}

	return newSQLAdapter(db, postgresDialect), nil
}
