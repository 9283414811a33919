// Package datagen produces random column values and record samples.
package datagen

import (
	"fmt"
	"math/rand/v2"

	"github.com/tordrt/crudst/internal/schema"
)

const (
	maxInteger      = 2_000_000_000
	maxFloat        = 2_000_000_000.0
	minStringLength = 10
	maxStringLength = schema.StringCapacity
	stringAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789 "
)

// Generator produces random values from a private source.
// A Generator is not safe for concurrent use; give each goroutine its own
// (see Fork).
type Generator struct {
	rng *rand.Rand
}

// New creates a generator whose output is fully determined by seed
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom creates a generator seeded from the runtime's random source
func NewRandom() *Generator {
	return New(rand.Uint64())
}

// Fork returns an independent generator seeded from g
func (g *Generator) Fork() *Generator {
	return New(g.rng.Uint64())
}

// Rand exposes the underlying source
func (g *Generator) Rand() *rand.Rand {
	return g.rng
}

// Value returns a random value for the given column type:
// bool, int64 in [0, 2e9], float64 in [0, 2e9], or a string of 10 to 100
// characters drawn from a-z, 0-9 and space.
func (g *Generator) Value(t schema.Type) (any, error) {
	switch t {
	case schema.Boolean:
		return g.rng.IntN(2) == 1, nil
	case schema.Integer:
		return g.rng.Int64N(maxInteger + 1), nil
	case schema.Float:
		return g.rng.Float64() * maxFloat, nil
	case schema.String:
		return g.randomString(), nil
	default:
		return nil, fmt.Errorf("%w: %v", schema.ErrUnsupportedType, t)
	}
}

// Row returns one value per column, in column order
func (g *Generator) Row(columns []schema.Column) ([]any, error) {
	row := make([]any, len(columns))
	for i, c := range columns {
		v, err := g.Value(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

// Sample returns min(k, n) distinct indices drawn uniformly from [0, n)
func (g *Generator) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int{}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// partial Fisher-Yates: the first k slots end up a uniform sample
	for i := 0; i < k; i++ {
		j := i + g.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

func (g *Generator) randomString() string {
	n := minStringLength + g.rng.IntN(maxStringLength-minStringLength+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = stringAlphabet[g.rng.IntN(len(stringAlphabet))]
	}
	return string(b)
}
