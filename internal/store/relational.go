package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/crudst/internal/datagen"
	"github.com/tordrt/crudst/internal/schema"
)

// SQLAdapter implements Adapter on a relational database.
//
// BulkUpdate and BulkDelete run in one transaction per call: either every
// sampled row is changed or none is.
type SQLAdapter struct {
	db      *sql.DB
	dialect *dialect
}

func newSQLAdapter(db *sql.DB, d *dialect) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: d}
}

func (a *SQLAdapter) Kind() Kind { return Relational }

func (a *SQLAdapter) Backend() string { return a.dialect.name }

// DB returns the underlying database handle
func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

// Close closes the database handle
func (a *SQLAdapter) Close(context.Context) error {
	return a.db.Close()
}

// Materialize creates every schema table in one transaction. It fails with
// ErrSchemaConflict, creating nothing, when any of them already exists.
func (a *SQLAdapter) Materialize(ctx context.Context, s *schema.Schema) error {
	present, err := a.ListTables(ctx)
	if err != nil {
		return err
	}
	if conflicts := existingTables(s, present); len(conflicts) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaConflict, strings.Join(conflicts, ", "))
	}

	stmts := make([]string, 0, len(s.Tables))
	for i := range s.Tables {
		stmt, err := a.dialect.createTable(&s.Tables[i])
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}

	return a.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
		return nil
	})
}

// TearDown drops exactly the schema tables. It fails with ErrObjectNotFound,
// dropping nothing, when any of them is missing.
func (a *SQLAdapter) TearDown(ctx context.Context, s *schema.Schema) error {
	present, err := a.ListTables(ctx)
	if err != nil {
		return err
	}
	if missing := missingTables(s, present); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, strings.Join(missing, ", "))
	}

	return a.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range s.Tables {
			if _, err := tx.ExecContext(ctx, a.dialect.dropTable(t.Name)); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

// BulkInsert generates count rows and appends them to the table. All rows
// are written in one transaction, chunked under the dialect's bind limit.
func (a *SQLAdapter) BulkInsert(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (int, error) {
	if err := checkCount(count); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	if len(columns) == 0 {
		stmt := fmt.Sprintf(a.dialect.insertDefault, a.dialect.quote(table.Name))
		err := a.withTx(ctx, func(tx *sql.Tx) error {
			for range count {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", table.Name, err)
		}
		return count, nil
	}

	batch := a.dialect.rowsPerInsert(len(columns))
	err := a.withTx(ctx, func(tx *sql.Tx) error {
		for done := 0; done < count; {
			n := min(batch, count-done)
			args := make([]any, 0, n*len(columns))
			for range n {
				row, err := gen.Row(columns)
				if err != nil {
					return err
				}
				args = append(args, row...)
			}
			if _, err := tx.ExecContext(ctx, a.dialect.insertRows(table.Name, columns, n), args...); err != nil {
				return err
			}
			done += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table.Name, err)
	}
	return count, nil
}

// BulkUpdate overwrites columns of up to count rows sampled uniformly from
// the table. The sample is taken before the transaction starts.
func (a *SQLAdapter) BulkUpdate(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (MutationResult, error) {
	result := MutationResult{Table: table.Name, Requested: count, Atomic: true}
	if err := checkCount(count); err != nil {
		return result, err
	}

	keys, err := a.sampleKeys(ctx, table, count, gen)
	if err != nil {
		return result, err
	}
	result.Sampled = len(keys)
	if len(keys) == 0 || len(columns) == 0 {
		return result, nil
	}

	applied := 0
	err = a.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, a.dialect.updateRow(table, columns))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, key := range keys {
			args, err := gen.Row(columns)
			if err != nil {
				return err
			}
			args = append(args, key)
			if err := execOne(ctx, stmt, key, args...); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return result, &MutationError{Table: table.Name, Op: "update", RolledBack: true, Err: err}
	}

	result.Applied = applied
	return result, nil
}

// BulkDelete removes up to count rows sampled uniformly from the table.
// When count covers every row the table is emptied with one statement.
func (a *SQLAdapter) BulkDelete(ctx context.Context, table *schema.Table, count int, gen *datagen.Generator) (MutationResult, error) {
	result := MutationResult{Table: table.Name, Requested: count, Atomic: true}
	if err := checkCount(count); err != nil {
		return result, err
	}

	keys, err := a.selectKeys(ctx, table)
	if err != nil {
		return result, err
	}
	total := len(keys)
	if count == 0 || total == 0 {
		return result, nil
	}

	applied := 0
	if count >= total {
		result.Sampled = total
		err = a.withTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, a.dialect.deleteAll(table))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			applied = int(n)
			return nil
		})
	} else {
		picked := pick(keys, gen.Sample(total, count))
		result.Sampled = len(picked)
		err = a.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, a.dialect.deleteRow(table))
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, key := range picked {
				if err := execOne(ctx, stmt, key, key); err != nil {
					return err
				}
				applied++
			}
			return nil
		})
	}
	if err != nil {
		return result, &MutationError{Table: table.Name, Op: "delete", RolledBack: true, Err: err}
	}

	result.Applied = applied
	return result, nil
}

// ListTables lists base tables of the connected database
func (a *SQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, a.dialect.listTables)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// Count returns the number of rows in a table
func (a *SQLAdapter) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, a.dialect.count(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// selectKeys reads every identity value of the table
func (a *SQLAdapter) selectKeys(ctx context.Context, table *schema.Table) ([]int64, error) {
	rows, err := a.db.QueryContext(ctx, a.dialect.selectKeys(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read keys of %s: %w", table.Name, err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

func (a *SQLAdapter) sampleKeys(ctx context.Context, table *schema.Table, count int, gen *datagen.Generator) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}
	keys, err := a.selectKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	return pick(keys, gen.Sample(len(keys), count)), nil
}

// withTx runs fn in a transaction, committing only if fn succeeds. Any
// error or panic rolls the transaction back.
func (a *SQLAdapter) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// execOne runs stmt and requires it to affect exactly one row
func execOne(ctx context.Context, stmt *sql.Stmt, key int64, args ...any) error {
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("row %d: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("row %d: %w", key, err)
	}
	if n != 1 {
		return fmt.Errorf("row %d: %w: %d rows affected", key, ErrObjectNotFound, n)
	}
	return nil
}

func pick(keys []int64, idx []int) []int64 {
	out := make([]int64, len(idx))
	for i, j := range idx {
		out[i] = keys[j]
	}
	return out
}
