package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MarshalJSON writes the schema as a single-line object mapping each table
// name to an object of column name to type name. The identity column is
// written first. Table and column order are preserved.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range s.Tables {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := writeString(&buf, t.Name); err != nil {
			return nil, err
		}
		buf.WriteString(": {")
		for j, c := range t.ColumnList(true) {
			if j > 0 {
				buf.WriteString(", ")
			}
			if err := writeString(&buf, c.Name); err != nil {
				return nil, err
			}
			buf.WriteString(": ")
			if err := writeString(&buf, c.Type.String()); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses the single-line schema document, keeping the order
// in which tables and columns appear.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	var tables []Table
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return err
		}
		table, err := decodeTable(dec, name)
		if err != nil {
			return err
		}
		tables = append(tables, table)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	parsed := Schema{Tables: tables}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Encode writes the schema document followed by a newline
func Encode(w io.Writer, s *Schema) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// Decode reads one schema document from r
func Decode(r io.Reader) (*Schema, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrInvalidSchema)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	s := &Schema{}
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeTable(dec *json.Decoder, name string) (Table, error) {
	table := Table{Name: name, Key: KeyColumn()}

	if err := expectDelim(dec, '{'); err != nil {
		return table, err
	}

	keySeen := false
	for dec.More() {
		colName, err := readKey(dec)
		if err != nil {
			return table, err
		}

		tok, err := dec.Token()
		if err != nil {
			return table, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		typeName, ok := tok.(string)
		if !ok {
			return table, fmt.Errorf("%w: column %s.%s type must be a string", ErrInvalidSchema, name, colName)
		}
		typ, err := ParseType(typeName)
		if err != nil {
			return table, fmt.Errorf("column %s.%s: %w", name, colName, err)
		}

		if colName == KeyColumnName {
			if keySeen {
				return table, fmt.Errorf("%w: duplicate column %q in table %s", ErrInvalidSchema, colName, name)
			}
			if typ != Integer {
				return table, fmt.Errorf("%w: identity column of %s must be Integer, got %s", ErrInvalidSchema, name, typ)
			}
			keySeen = true
			continue
		}
		table.Columns = append(table.Columns, Column{Name: colName, Type: typ})
	}

	return table, expectDelim(dec, '}')
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected name, got %v", ErrInvalidSchema, tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidSchema, want, tok)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
