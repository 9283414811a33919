package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/crudst/internal/schema"
)

var mysqlDialect = &dialect{
	name:        "mysql",
	quote:       backQuote,
	placeholder: questionPlaceholder,
	identity:    "INTEGER NOT NULL AUTO_INCREMENT PRIMARY KEY",
	types: map[schema.Type]string{
		schema.Boolean: "BOOLEAN",
		schema.Integer: "INTEGER",
		schema.Float:   "DOUBLE",
		schema.String:  fmt.Sprintf("VARCHAR(%d)", schema.StringCapacity),
	},
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`,
	insertDefault: "INSERT INTO %s () VALUES ()",
	maxParams:     65535,
}

// NewMySQLAdapter connects to MySQL. dsn uses the go-sql-driver syntax,
// e.g. user:pass@tcp(localhost:3306)/db.
func NewMySQLAdapter(ctx context.Context, dsn string) (*SQLAdapter, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid MySQL DSN: %w", ErrConnectionFailure, err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("%w: MySQL DSN must name a database", ErrConnectionFailure)
	}
	// An update writing identical values must still count as a matched row
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to configure MySQL: %w", ErrConnectionFailure, err)
	}
	db := sql.OpenDB(connector)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping MySQL: %w", ErrConnectionFailure, err)
	}

	return newSQLAdapter(db, mysqlDialect), nil
}
