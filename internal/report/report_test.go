package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/crudst/internal/stress"
)

var testRunID = uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")

func testReport() *stress.Report {
	return &stress.Report{
		RunID:    testRunID,
		Workload: stress.Update,
		Backend:  "postgres",
		Atomic:   true,
		Created:  []string{"table_abc123"},
		Phases:   []stress.Phase{{Name: "materialize", Elapsed: 12 * time.Millisecond}},
		Tables: []stress.TableResult{
			{Table: "table_abc123", Requested: 50, Affected: 0, Elapsed: 3 * time.Millisecond},
			{Table: "table_def456", Requested: 50, Affected: 50, Elapsed: 1500 * time.Microsecond},
		},
		Elapsed: 20 * time.Millisecond,
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(testReport()))

	want := "RUN 7d444840-9dc0-11d1-b245-5ffdce74fad2 update on postgres (atomic per table)\n" +
		"  CREATED table_abc123\n" +
		"  PHASE materialize 12ms\n" +
		"  TABLE table_abc123 requested=50 affected=0 3ms\n" +
		"  TABLE table_def456 requested=50 affected=50 1.5ms\n" +
		"TOTAL affected=50 20ms\n"
	assert.Equal(t, want, buf.String())
}

func TestTextFormatterDocumentStore(t *testing.T) {
	r := testReport()
	r.Backend = "mongodb"
	r.Atomic = false
	r.Created = nil
	r.Phases = nil

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(r))
	assert.Contains(t, buf.String(), "on mongodb (per record, not atomic)")
	assert.NotContains(t, buf.String(), "CREATED")
	assert.NotContains(t, buf.String(), "PHASE")
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(testReport()))

	out := buf.String()
	assert.Contains(t, out, "# Stress Report: update\n")
	assert.Contains(t, out, "- **Run:** 7d444840-9dc0-11d1-b245-5ffdce74fad2\n")
	assert.Contains(t, out, "- **Created:** table_abc123\n")
	assert.Contains(t, out, "- **Affected:** 50\n")
	assert.Contains(t, out, "## Phases\n\n- **materialize:** 12ms\n")
	assert.Contains(t, out, "| Table | Requested | Affected | Elapsed |\n")
	assert.Contains(t, out, "| table_def456 | 50 | 50 | 1.5ms |\n")
}

func TestMarkdownFormatterWithoutTables(t *testing.T) {
	r := testReport()
	r.Workload = stress.Create
	r.Tables = nil

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(r))
	assert.NotContains(t, buf.String(), "## Tables")
	assert.Contains(t, buf.String(), "- **Affected:** 0\n")
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    Formatter
		wantErr bool
	}{
		{"", &TextFormatter{}, false},
		{"text", &TextFormatter{}, false},
		{"markdown", &MarkdownFormatter{}, false},
		{"json", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := New(tt.format, nil)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}
}
