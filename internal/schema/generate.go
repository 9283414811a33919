package schema

import (
	"fmt"
	"math/rand/v2"
)

const (
	namePrefixTable  = "table_"
	namePrefixColumn = "col_"
	nameSuffixLength = 6
	nameAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Generate builds a random schema with tableCount tables, each holding the
// identity column plus columnCount columns of uniformly drawn types.
// Table and column names get a random 6 character suffix; a suffix that
// collides with an existing name is drawn again.
func Generate(rng *rand.Rand, tableCount, columnCount int) (*Schema, error) {
	if tableCount < 1 {
		return nil, fmt.Errorf("%w: tables number must be greater than 0", ErrInvalidArgument)
	}
	if columnCount < 1 {
		return nil, fmt.Errorf("%w: columns number must be greater than 0", ErrInvalidArgument)
	}

	s := &Schema{Tables: make([]Table, 0, tableCount)}
	tableNames := make(map[string]bool, tableCount)

	for range tableCount {
		name := uniqueName(rng, namePrefixTable, tableNames)

		columnNames := map[string]bool{KeyColumnName: true}
		columns := make([]Column, 0, columnCount)
		for range columnCount {
			columns = append(columns, Column{
				Name: uniqueName(rng, namePrefixColumn, columnNames),
				Type: Types[rng.IntN(len(Types))],
			})
		}

		s.Tables = append(s.Tables, NewTable(name, columns...))
	}

	return s, nil
}

func uniqueName(rng *rand.Rand, prefix string, taken map[string]bool) string {
	for {
		name := prefix + randomSuffix(rng, nameSuffixLength)
		if !taken[name] {
			taken[name] = true
			return name
		}
	}
}

func randomSuffix(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = nameAlphabet[rng.IntN(len(nameAlphabet))]
	}
	return string(b)
}
