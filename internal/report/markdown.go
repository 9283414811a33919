package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/crudst/internal/stress"
)

// MarkdownFormatter formats a report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *stress.Report) error {
	_, _ = fmt.Fprintf(f.writer, "# Stress Report: %s\n", r.Workload)
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintf(f.writer, "- **Run:** %s\n", r.RunID)
	_, _ = fmt.Fprintf(f.writer, "- **Backend:** %s\n", r.Backend)
	_, _ = fmt.Fprintf(f.writer, "- **Mutations:** %s\n", atomicity(r))
	if len(r.Created) > 0 {
		_, _ = fmt.Fprintf(f.writer, "- **Created:** %s\n", strings.Join(r.Created, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "- **Affected:** %d\n", r.Affected())
	_, _ = fmt.Fprintf(f.writer, "- **Elapsed:** %s\n", duration(r.Elapsed))
	_, _ = fmt.Fprintln(f.writer)

	if len(r.Phases) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Phases")
		_, _ = fmt.Fprintln(f.writer)
		for _, p := range r.Phases {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", p.Name, duration(p.Elapsed))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(r.Tables) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Tables")
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "| Table | Requested | Affected | Elapsed |")
		_, _ = fmt.Fprintln(f.writer, "|---|---:|---:|---:|")
		for _, t := range r.Tables {
			_, _ = fmt.Fprintf(f.writer, "| %s | %d | %d | %s |\n", t.Table, t.Requested, t.Affected, duration(t.Elapsed))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	return nil
}
