package store

import (
	"fmt"
	"strings"

	"github.com/tordrt/crudst/internal/schema"
)

// dialect holds the SQL differences between relational backends
type dialect struct {
	name string
	// quote wraps an identifier. Names are validated by the schema package
	// before they get here.
	quote       func(name string) string
	placeholder func(n int) string // 1-based
	// identity is the column definition of the auto-increment primary key
	identity string
	types    map[schema.Type]string
	// listTables lists base tables of the connected database/schema
	listTables string
	// insertDefault inserts one row of defaults into the %s table
	insertDefault string
	// maxParams bounds bind parameters per statement
	maxParams int
}

func doubleQuote(name string) string { return `"` + name + `"` }

func backQuote(name string) string { return "`" + name + "`" }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

func (d *dialect) columnType(t schema.Type) (string, error) {
	typ, ok := d.types[t]
	if !ok {
		return "", fmt.Errorf("%w: %v", schema.ErrUnsupportedType, t)
	}
	return typ, nil
}

func (d *dialect) createTable(t *schema.Table) (string, error) {
	defs := []string{d.quote(t.Key.Name) + " " + d.identity}
	for _, c := range t.Columns {
		typ, err := d.columnType(c.Type)
		if err != nil {
			return "", fmt.Errorf("column %s.%s: %w", t.Name, c.Name, err)
		}
		defs = append(defs, d.quote(c.Name)+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(t.Name), strings.Join(defs, ", ")), nil
}

func (d *dialect) dropTable(name string) string {
	return "DROP TABLE " + d.quote(name)
}

// insertRows builds a multi-row insert for rows records of the given columns
func (d *dialect) insertRows(table string, columns []schema.Column, rows int) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.quote(c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.quote(table), strings.Join(names, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// rowsPerInsert is how many records of width columns fit in one statement
func (d *dialect) rowsPerInsert(width int) int {
	if width == 0 {
		return 1
	}
	return max(1, d.maxParams/width)
}

// updateRow sets every column of one row; the key is the last parameter
func (d *dialect) updateRow(t *schema.Table, columns []schema.Column) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = %s", d.quote(c.Name), d.placeholder(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.quote(t.Name), strings.Join(sets, ", "), d.quote(t.Key.Name), d.placeholder(len(columns)+1))
}

func (d *dialect) deleteRow(t *schema.Table) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.quote(t.Name), d.quote(t.Key.Name), d.placeholder(1))
}

func (d *dialect) deleteAll(t *schema.Table) string {
	return "DELETE FROM " + d.quote(t.Name)
}

func (d *dialect) selectKeys(t *schema.Table) string {
	return fmt.Sprintf("SELECT %s FROM %s", d.quote(t.Key.Name), d.quote(t.Name))
}

func (d *dialect) count(table string) string {
	return "SELECT COUNT(*) FROM " + d.quote(table)
}
