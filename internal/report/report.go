// Package report renders stress run reports for people.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tordrt/crudst/internal/stress"
)

// ErrUnknownFormat is returned by New for formats other than text and markdown
var ErrUnknownFormat = errors.New("unknown report format")

// Formatter writes a report to its writer
type Formatter interface {
	Format(r *stress.Report) error
}

// New returns the formatter for format ("text" or "markdown") writing to w
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case "", "text":
		return NewTextFormatter(w), nil
	case "markdown":
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s (must be 'text' or 'markdown')", ErrUnknownFormat, format)
	}
}

func duration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

func atomicity(r *stress.Report) string {
	if r.Atomic {
		return "atomic per table"
	}
	return "per record, not atomic"
}
