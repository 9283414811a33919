package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/crudst/internal/stress"
)

// TextFormatter formats a report as compact text, one line per table
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the report in compact text format
func (f *TextFormatter) Format(r *stress.Report) error {
	_, _ = fmt.Fprintf(f.writer, "RUN %s %s on %s (%s)\n", r.RunID, r.Workload, r.Backend, atomicity(r))

	if len(r.Created) > 0 {
		_, _ = fmt.Fprintf(f.writer, "  CREATED %s\n", strings.Join(r.Created, ", "))
	}

	for _, p := range r.Phases {
		_, _ = fmt.Fprintf(f.writer, "  PHASE %s %s\n", p.Name, duration(p.Elapsed))
	}

	for _, t := range r.Tables {
		_, _ = fmt.Fprintf(f.writer, "  TABLE %s requested=%d affected=%d %s\n", t.Table, t.Requested, t.Affected, duration(t.Elapsed))
	}

	_, err := fmt.Fprintf(f.writer, "TOTAL affected=%d %s\n", r.Affected(), duration(r.Elapsed))
	return err
}
