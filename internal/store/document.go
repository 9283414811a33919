package store

import (
	"context"
	"fmt"

	"github.com/tordrt/crudst/internal/datagen"
	"github.com/tordrt/crudst/internal/schema"
)

// field is one named value of a document, kept in column order
type field struct {
	Name  string
	Value any
}

// documentBackend is the subset of a document database the adapter needs.
// Every call is atomic on its own; nothing spans several documents.
type documentBackend interface {
	name() string
	listCollections(ctx context.Context) ([]string, error)
	insertMany(ctx context.Context, collection string, docs [][]field) error
	// sampleIDs returns up to size document identifiers drawn at random
	sampleIDs(ctx context.Context, collection string, size int) ([]any, error)
	updateByID(ctx context.Context, collection string, id any, set []field) error
	deleteByID(ctx context.Context, collection string, id any) error
	drop(ctx context.Context, collection string) error
	count(ctx context.Context, collection string) (int64, error)
	close(ctx context.Context) error
}

// DocumentAdapter implements Adapter on a document database.
//
// Collections are created implicitly by the first insert. BulkUpdate and
// BulkDelete change one document per call with no surrounding transaction,
// so a failure part way leaves the earlier documents changed; the returned
// MutationError reports how many.
type DocumentAdapter struct {
	backend documentBackend
}

func newDocumentAdapter(b documentBackend) *DocumentAdapter {
	return &DocumentAdapter{backend: b}
}

func (a *DocumentAdapter) Kind() Kind { return Document }

func (a *DocumentAdapter) Backend() string { return a.backend.name() }

func (a *DocumentAdapter) Close(ctx context.Context) error {
	return a.backend.close(ctx)
}

// Materialize is a no-op: a collection appears on its first write
func (a *DocumentAdapter) Materialize(context.Context, *schema.Schema) error {
	return nil
}

// TearDown drops every schema collection. Dropping a collection that does
// not exist is not an error.
func (a *DocumentAdapter) TearDown(ctx context.Context, s *schema.Schema) error {
	for _, t := range s.Tables {
		if err := a.backend.drop(ctx, t.Name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", t.Name, err)
		}
	}
	return nil
}

// BulkInsert writes count generated documents with one multi-document insert
func (a *DocumentAdapter) BulkInsert(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (int, error) {
	if err := checkCount(count); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	docs := make([][]field, 0, count)
	for range count {
		doc, err := document(columns, gen)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}

	if err := a.backend.insertMany(ctx, table.Name, docs); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table.Name, err)
	}
	return count, nil
}

// BulkUpdate sets every column of up to count randomly sampled documents to
// fresh values, one document at a time.
func (a *DocumentAdapter) BulkUpdate(ctx context.Context, table *schema.Table, columns []schema.Column, count int, gen *datagen.Generator) (MutationResult, error) {
	result := MutationResult{Table: table.Name, Requested: count}
	if err := checkCount(count); err != nil {
		return result, err
	}

	ids, err := a.sample(ctx, table.Name, count)
	if err != nil {
		return result, err
	}
	result.Sampled = len(ids)
	if len(columns) == 0 {
		return result, nil
	}

	for _, id := range ids {
		set, err := document(columns, gen)
		if err == nil {
			err = a.backend.updateByID(ctx, table.Name, id, set)
		}
		if err != nil {
			return result, &MutationError{Table: table.Name, Op: "update", Applied: result.Applied, Err: fmt.Errorf("document %v: %w", id, err)}
		}
		result.Applied++
	}
	return result, nil
}

// BulkDelete removes up to count randomly sampled documents, one at a time
func (a *DocumentAdapter) BulkDelete(ctx context.Context, table *schema.Table, count int, _ *datagen.Generator) (MutationResult, error) {
	result := MutationResult{Table: table.Name, Requested: count}
	if err := checkCount(count); err != nil {
		return result, err
	}

	ids, err := a.sample(ctx, table.Name, count)
	if err != nil {
		return result, err
	}
	result.Sampled = len(ids)

	for _, id := range ids {
		if err := a.backend.deleteByID(ctx, table.Name, id); err != nil {
			return result, &MutationError{Table: table.Name, Op: "delete", Applied: result.Applied, Err: fmt.Errorf("document %v: %w", id, err)}
		}
		result.Applied++
	}
	return result, nil
}

func (a *DocumentAdapter) ListTables(ctx context.Context) ([]string, error) {
	names, err := a.backend.listCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

func (a *DocumentAdapter) Count(ctx context.Context, table string) (int64, error) {
	n, err := a.backend.count(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// sample draws up to count distinct document identifiers
func (a *DocumentAdapter) sample(ctx context.Context, collection string, count int) ([]any, error) {
	if count == 0 {
		return nil, nil
	}

	ids, err := a.backend.sampleIDs(ctx, collection, count)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", collection, err)
	}

	// $sample may return a document twice when it uses a random cursor
	seen := make(map[any]bool, len(ids))
	unique := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique, nil
}

func document(columns []schema.Column, gen *datagen.Generator) ([]field, error) {
	row, err := gen.Row(columns)
	if err != nil {
		return nil, err
	}
	doc := make([]field, len(columns))
	for i, c := range columns {
		doc[i] = field{Name: c.Name, Value: row[i]}
	}
	return doc, nil
}
