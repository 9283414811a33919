// Package store materializes schemas and applies bulk record mutations on a
// relational database or a document database behind one Adapter interface.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tordrt/crudst/internal/datagen"
	"github.com/tordrt/crudst/internal/schema"
)

var (
	// ErrInvalidArgument is returned for negative record counts.
	ErrInvalidArgument = schema.ErrInvalidArgument
	// ErrConnectionFailure is returned when the target store cannot be reached.
	ErrConnectionFailure = errors.New("connection failure")
	// ErrUnsupportedScheme is returned for a connection URI no adapter handles.
	ErrUnsupportedScheme = errors.New("unsupported connection scheme")
	// ErrSchemaConflict is returned when materializing a table that already exists.
	ErrSchemaConflict = errors.New("schema conflict: object already exists")
	// ErrObjectAlreadyExists is an alias of ErrSchemaConflict.
	ErrObjectAlreadyExists = ErrSchemaConflict
	// ErrObjectNotFound is returned when a named table does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrMutationFailure is matched by every *MutationError.
	ErrMutationFailure = errors.New("mutation failure")
)

// Kind identifies the data model an adapter targets
type Kind int

const (
	Relational Kind = iota + 1
	Document
)

func (k Kind) String() string {
	switch k {
	case Relational:
		return "relational"
	case Document:
		return "document"
	default:
		return "unknown"
	}
}

// Adapter maps schema materialization and bulk CRUD operations onto a store.
//
// Tables and columns are read-only inputs. Randomness comes from the
// generator passed by the caller, so one Adapter may serve several
// goroutines as long as each brings its own generator.
type Adapter interface {
	Kind() Kind
	// Backend names the concrete store: postgres, mysql, sqlite or mongodb.
	Backend() string

	Materialize(ctx context.Context, s *schema.Schema) error
	TearDown(ctx context.Context, s *schema.Schema) error

	// BulkInsert persists count generated records and returns how many were written.
	BulkInsert(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (int, error)
	// BulkUpdate overwrites columns of up to count sampled records.
	BulkUpdate(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (MutationResult, error)
	// BulkDelete removes up to count sampled records.
	BulkDelete(ctx context.Context, table *schema.Table, count int, gen *datagen.Generator) (MutationResult, error)

	// ListTables returns the tables (or collections) present in the target.
	ListTables(ctx context.Context) ([]string, error)
	// Count returns the number of records in a table.
	Count(ctx context.Context, table string) (int64, error)

	Close(ctx context.Context) error
}

// MutationResult describes the outcome of BulkUpdate or BulkDelete
type MutationResult struct {
	Table     string
	Requested int
	// Sampled is the number of records selected, clamped to the record count.
	Sampled int
	// Applied is the number of records changed and left visible.
	Applied int
	// Atomic is true when the mutation is all-or-nothing across records.
	Atomic bool
}

// MutationError reports a failed record operation inside BulkUpdate or
// BulkDelete together with how much of the mutation remains applied.
type MutationError struct {
	Table string
	Op    string
	// Applied is the number of records changed before the failure that stay changed.
	Applied int
	// RolledBack is true when every change of the call was undone.
	RolledBack bool
	Err        error
}

func (e *MutationError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("%s %s failed, rolled back: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d records applied: %v", e.Op, e.Table, e.Applied, e.Err)
}

func (e *MutationError) Unwrap() []error {
	return []error{ErrMutationFailure, e.Err}
}

func checkCount(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: record count must not be negative, got %d", ErrInvalidArgument, count)
	}
	return nil
}

// missingTables returns the schema tables absent from present, in schema order
func missingTables(s *schema.Schema, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[name] = true
	}

	var missing []string
	for _, t := range s.Tables {
		if !have[t.Name] {
			missing = append(missing, t.Name)
		}
	}
	return missing
}

// existingTables returns the schema tables found in present, in schema order
func existingTables(s *schema.Schema, present []string) []string {
	missing := make(map[string]bool)
	for _, name := range missingTables(s, present) {
		missing[name] = true
	}

	var existing []string
	for _, t := range s.Tables {
		if !missing[t.Name] {
			existing = append(existing, t.Name)
		}
	}
	return existing
}
