package schema

import (
	"fmt"
	"regexp"
)

// KeyColumnName is the name of the identity column every table carries
const KeyColumnName = "col_key"

// StringCapacity is the fixed character capacity of String columns
const StringCapacity = 100

// Type is the declared type of a column
type Type int

const (
	Boolean Type = iota + 1
	Integer
	Float
	String
)

// Types lists every supported column type, in declaration order
var Types = []Type{Boolean, Integer, Float, String}

// String returns the type name as written in the interchange format
func (t Type) String() string {
	switch t {
	case Boolean:
		return "Boolean"
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return fmt.Sprintf("String(%d)", StringCapacity)
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Valid reports whether t is one of the supported types
func (t Type) Valid() bool {
	return t >= Boolean && t <= String
}

// ParseType parses a type name. Both "String" and "String(100)" are accepted.
func ParseType(name string) (Type, error) {
	switch name {
	case "Boolean":
		return Boolean, nil
	case "Integer":
		return Integer, nil
	case "Float":
		return Float, nil
	case "String", String.String():
		return String, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
}

// Schema represents a set of tables, in a stable order
type Schema struct {
	Tables []Table
}

// Table represents a table (or collection) definition
type Table struct {
	Name    string
	Key     Column
	Columns []Column
}

// Column represents a table column
type Column struct {
	Name string
	Type Type
}

// KeyColumn returns the identity column definition shared by all tables
func KeyColumn() Column {
	return Column{Name: KeyColumnName, Type: Integer}
}

// NewTable creates a table with the identity column and the given columns
func NewTable(name string, columns ...Column) Table {
	return Table{Name: name, Key: KeyColumn(), Columns: columns}
}

// Table looks up a table by name
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Names returns the table names in schema order
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Subset returns a schema holding only the named tables, in schema order.
// Unknown names are ignored.
func (s *Schema) Subset(names []string) *Schema {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	sub := &Schema{Tables: make([]Table, 0, len(names))}
	for _, t := range s.Tables {
		if want[t.Name] {
			sub.Tables = append(sub.Tables, t)
		}
	}
	return sub
}

// ColumnList returns the table's columns. The identity column comes first
// when includeKey is set.
func (t *Table) ColumnList(includeKey bool) []Column {
	cols := make([]Column, 0, len(t.Columns)+1)
	if includeKey {
		cols = append(cols, t.Key)
	}
	return append(cols, t.Columns...)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is safe to use as a table or column identifier
func ValidName(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks names, types and the identity column of every table
func (s *Schema) Validate() error {
	if len(s.Tables) == 0 {
		return fmt.Errorf("%w: no tables", ErrInvalidSchema)
	}

	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if !ValidName(t.Name) {
			return fmt.Errorf("%w: invalid table name %q", ErrInvalidArgument, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate table %q", ErrInvalidSchema, t.Name)
		}
		seen[t.Name] = true

		if t.Key != KeyColumn() {
			return fmt.Errorf("%w: table %s has identity column %s %s", ErrInvalidSchema, t.Name, t.Key.Name, t.Key.Type)
		}

		cols := map[string]bool{KeyColumnName: true}
		for _, c := range t.Columns {
			if !ValidName(c.Name) {
				return fmt.Errorf("%w: invalid column name %q in table %s", ErrInvalidArgument, c.Name, t.Name)
			}
			if cols[c.Name] {
				return fmt.Errorf("%w: duplicate column %q in table %s", ErrInvalidSchema, c.Name, t.Name)
			}
			cols[c.Name] = true
			if !c.Type.Valid() {
				return fmt.Errorf("%w: column %s.%s", ErrUnsupportedType, t.Name, c.Name)
			}
		}
	}
	return nil
}
