package stress

import (
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/crudst/internal/schema"
)

// Report summarizes one workload run. Timings are observational.
type Report struct {
	RunID    uuid.UUID
	Workload Workload
	Backend  string
	// Atomic is true when update and delete are all-or-nothing per table.
	// Document stores apply them one document at a time.
	Atomic bool
	Schema *schema.Schema
	// Created lists tables materialized because they were missing from the target.
	Created []string
	Phases  []Phase
	Tables  []TableResult
	Elapsed time.Duration
}

// Phase is one timed step of a workload, such as materialize or teardown
type Phase struct {
	Name    string
	Elapsed time.Duration
}

// TableResult is the outcome of the per-table operation of a workload
type TableResult struct {
	Table     string
	Requested int
	Affected  int
	Elapsed   time.Duration
}

// Affected returns the total number of records affected across tables
func (r *Report) Affected() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Affected
	}
	return total
}
