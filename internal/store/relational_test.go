package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/crudst/internal/datagen"
	"github.com/tordrt/crudst/internal/schema"
)

func newTestSQLite(t *testing.T) *SQLAdapter {
	t.Helper()

	a, err := NewSQLiteAdapter(context.Background(), filepath.Join(t.TempDir(), "stress.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := a.Close(context.Background()); err != nil {
			t.Logf("failed to close SQLite adapter: %v", err)
		}
	})
	return a
}

func testSchema() *schema.Schema {
	return &schema.Schema{Tables: []schema.Table{
		schema.NewTable("table_alpha01",
			schema.Column{Name: "col_flag01", Type: schema.Boolean},
			schema.Column{Name: "col_count1", Type: schema.Integer},
			schema.Column{Name: "col_ratio1", Type: schema.Float},
			schema.Column{Name: "col_label1", Type: schema.String},
		),
		schema.NewTable("table_beta002",
			schema.Column{Name: "col_label2", Type: schema.String},
		),
	}}
}

// snapshot renders every row of a table keyed by its identity value
func snapshot(t *testing.T, a *SQLAdapter, table *schema.Table) map[int64]string {
	t.Helper()

	cols := table.ColumnList(true)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = a.dialect.quote(c.Name)
	}
	rows, err := a.DB().Query(fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), a.dialect.quote(table.Name)))
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var key int64
		values := make([]any, len(cols)-1)
		dest := []any{&key}
		for i := range values {
			dest = append(dest, &values[i])
		}
		require.NoError(t, rows.Scan(dest...))
		out[key] = fmt.Sprint(values...)
	}
	require.NoError(t, rows.Err())
	return out
}

func changedRows(before, after map[int64]string) int {
	changed := 0
	for key, v := range before {
		if got, ok := after[key]; ok && got != v {
			changed++
		}
	}
	return changed
}

func TestSQLiteMaterialize(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()

	require.NoError(t, a.Materialize(ctx, s))

	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, s.Names(), tables)

	err = a.Materialize(ctx, s)
	require.ErrorIs(t, err, ErrSchemaConflict)
	assert.ErrorIs(t, err, ErrObjectAlreadyExists)
}

func TestSQLiteMaterializeConflictCreatesNothing(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()

	require.NoError(t, a.Materialize(ctx, s.Subset([]string{"table_beta002"})))

	err := a.Materialize(ctx, s)
	require.ErrorIs(t, err, ErrSchemaConflict)
	assert.Contains(t, err.Error(), "table_beta002")

	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"table_beta002"}, tables)
}

func TestSQLiteTearDown(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()

	err := a.TearDown(ctx, s)
	require.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, a.Materialize(ctx, s))
	_, err = a.DB().Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)

	require.NoError(t, a.TearDown(ctx, s))

	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"unrelated"}, tables, "only schema tables are dropped")
}

func TestSQLiteBulkInsert(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(1)
	table := &s.Tables[0]

	tests := []struct {
		name      string
		count     int
		wantErr   error
		wantTotal int64
	}{
		{name: "zero is a no-op", count: 0, wantTotal: 0},
		{name: "negative count", count: -1, wantErr: ErrInvalidArgument, wantTotal: 0},
		{name: "one row", count: 1, wantTotal: 1},
		{name: "spans several statements", count: 600, wantTotal: 601},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := a.BulkInsert(ctx, table, table.ColumnList(false), tt.count, gen)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.count, n)
			}

			total, err := a.Count(ctx, table.Name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
		})
	}

	keys, err := a.selectKeys(ctx, table)
	require.NoError(t, err)
	unique := make(map[int64]bool)
	for _, k := range keys {
		assert.Positive(t, k)
		unique[k] = true
	}
	assert.Len(t, unique, len(keys), "identities must be unique")
}

func TestSQLiteBulkInsertWithoutColumns(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := &schema.Schema{Tables: []schema.Table{schema.NewTable("only_key")}}
	require.NoError(t, a.Materialize(ctx, s))

	n, err := a.BulkInsert(ctx, &s.Tables[0], nil, 5, datagen.New(1))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	total, err := a.Count(ctx, "only_key")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestSQLiteBulkUpdate(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(2)
	table := &s.Tables[0]
	cols := table.ColumnList(false)

	_, err := a.BulkInsert(ctx, table, cols, 100, gen)
	require.NoError(t, err)
	before := snapshot(t, a, table)

	res, err := a.BulkUpdate(ctx, table, cols, 50, gen)
	require.NoError(t, err)
	assert.Equal(t, MutationResult{Table: table.Name, Requested: 50, Sampled: 50, Applied: 50, Atomic: true}, res)

	after := snapshot(t, a, table)
	require.Len(t, after, 100)
	for key := range before {
		assert.Contains(t, after, key, "identity values must not change")
	}
	assert.Equal(t, 50, changedRows(before, after))
}

func TestSQLiteBulkUpdateClampsToRowCount(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(3)
	table := &s.Tables[1]
	cols := table.ColumnList(false)

	res, err := a.BulkUpdate(ctx, table, cols, 10, gen)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sampled, "empty table")

	_, err = a.BulkInsert(ctx, table, cols, 12, gen)
	require.NoError(t, err)
	before := snapshot(t, a, table)

	res, err = a.BulkUpdate(ctx, table, cols, 1000, gen)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Requested)
	assert.Equal(t, 12, res.Sampled)
	assert.Equal(t, 12, res.Applied)
	assert.Equal(t, 12, changedRows(before, snapshot(t, a, table)))

	_, err = a.BulkUpdate(ctx, table, cols, -3, gen)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSQLiteBulkUpdateRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(4)
	table := &s.Tables[0]
	cols := table.ColumnList(false)

	_, err := a.BulkInsert(ctx, table, cols, 20, gen)
	require.NoError(t, err)

	_, err = a.DB().Exec(`CREATE TRIGGER fail_row_7 BEFORE UPDATE ON "table_alpha01"
		WHEN OLD.col_key = 7
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)
	before := snapshot(t, a, table)

	res, err := a.BulkUpdate(ctx, table, cols, 20, gen)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationFailure)

	var mutErr *MutationError
	require.True(t, errors.As(err, &mutErr))
	assert.True(t, mutErr.RolledBack)
	assert.Equal(t, 0, mutErr.Applied)
	assert.Equal(t, "update", mutErr.Op)
	assert.Contains(t, err.Error(), "injected failure")
	assert.Equal(t, 0, res.Applied)

	assert.Equal(t, before, snapshot(t, a, table), "no partial update may remain visible")
}

func TestSQLiteBulkDelete(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(5)
	table := &s.Tables[0]

	_, err := a.BulkInsert(ctx, table, table.ColumnList(false), 100, gen)
	require.NoError(t, err)

	res, err := a.BulkDelete(ctx, table, 30, gen)
	require.NoError(t, err)
	assert.Equal(t, MutationResult{Table: table.Name, Requested: 30, Sampled: 30, Applied: 30, Atomic: true}, res)

	total, err := a.Count(ctx, table.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(70), total)

	res, err = a.BulkDelete(ctx, table, 0, gen)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)

	res, err = a.BulkDelete(ctx, table, 500, gen)
	require.NoError(t, err)
	assert.Equal(t, 70, res.Sampled)
	assert.Equal(t, 70, res.Applied)

	total, err = a.Count(ctx, table.Name)
	require.NoError(t, err)
	assert.Zero(t, total)

	res, err = a.BulkDelete(ctx, table, 5, gen)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sampled, "empty table")
}

func TestSQLiteBulkDeleteRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	s := testSchema()
	require.NoError(t, a.Materialize(ctx, s))
	gen := datagen.New(6)
	table := &s.Tables[1]

	_, err := a.BulkInsert(ctx, table, table.ColumnList(false), 10, gen)
	require.NoError(t, err)
	_, err = a.DB().Exec(`CREATE TRIGGER fail_row_3 BEFORE DELETE ON "table_beta002"
		WHEN OLD.col_key = 3
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)

	tests := []struct {
		name  string
		count int
	}{
		{name: "every row", count: 10},
		{name: "more than every row", count: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.BulkDelete(ctx, table, tt.count, gen)
			require.ErrorIs(t, err, ErrMutationFailure)

			total, err := a.Count(ctx, table.Name)
			require.NoError(t, err)
			assert.Equal(t, int64(10), total)
		})
	}
}

func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLite(t)
	gen := datagen.New(2024)

	s, err := schema.Generate(gen.Rand(), 2, 3)
	require.NoError(t, err)
	require.NoError(t, a.Materialize(ctx, s))

	for i := range s.Tables {
		table := &s.Tables[i]
		cols := table.ColumnList(false)

		n, err := a.BulkInsert(ctx, table, cols, 100, gen)
		require.NoError(t, err)
		require.Equal(t, 100, n)

		before := snapshot(t, a, table)
		require.Len(t, before, 100, "100 rows with unique identities")

		res, err := a.BulkUpdate(ctx, table, cols, 50, gen)
		require.NoError(t, err)
		require.Equal(t, 50, res.Applied)

		after := snapshot(t, a, table)
		require.Len(t, after, 100)
		changed := changedRows(before, after)
		assert.Positive(t, changed)
		assert.LessOrEqual(t, changed, 50)

		res, err = a.BulkDelete(ctx, table, 30, gen)
		require.NoError(t, err)
		require.Equal(t, 30, res.Applied)

		total, err := a.Count(ctx, table.Name)
		require.NoError(t, err)
		assert.Equal(t, int64(70), total)
	}

	require.NoError(t, a.TearDown(ctx, s))
	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	for _, name := range s.Names() {
		assert.NotContains(t, tables, name)
	}
}
