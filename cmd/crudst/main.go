package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tordrt/crudst"
	"github.com/tordrt/crudst/internal/config"
	"github.com/tordrt/crudst/internal/logger"
	"github.com/tordrt/crudst/internal/report"
	"github.com/tordrt/crudst/internal/schema"
)

// usageError marks missing or malformed arguments; it exits with status 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unknown command or argument %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// cli holds flag values and the streams commands read and write
type cli struct {
	env    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	databaseURL     string
	schemaFile      string
	outputFile      string
	tables          int
	columns         int
	records         int
	workers         int
	seed            uint64
	format          string
	requireExisting bool
	verbose         bool

	log *slog.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crudst",
		Short: "Generate random schemas and stress a database with bulk CRUD workloads",
		Long: `crudst generates random table schemas and runs create, insert, update, delete and drop
workloads against PostgreSQL, MySQL, SQLite or MongoDB.

Update and delete are all-or-nothing per table on relational databases. MongoDB applies
them one document at a time, so a failure leaves earlier documents changed.`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return usagef("a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.workers < 1 {
				return usagef("--workers must be at least 1, got %d", c.workers)
			}
			if _, err := report.New(c.format, io.Discard); err != nil {
				return usagef("%v", err)
			}
			c.log = logger.New(c.stderr, c.verbose)
			return nil
		},
	}
	rootCmd.SetIn(c.stdin)
	rootCmd.SetOut(c.stdout)
	rootCmd.SetErr(c.stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := rootCmd.PersistentFlags()
	pf.IntVar(&c.workers, "workers", c.env.Workers, "Tables processed concurrently (env CRUDST_WORKERS)")
	pf.Uint64Var(&c.seed, "seed", 0, "Random seed for reproducible schemas and values (default: random)")
	pf.StringVar(&c.format, "format", c.env.Format, "Report format: text or markdown (env CRUDST_FORMAT)")
	pf.BoolVar(&c.requireExisting, "require-existing", false, "Fail drop, update and delete when a schema table is missing instead of creating it")
	pf.BoolVarP(&c.verbose, "verbose", "v", c.env.Verbose, "Log per-table progress (env CRUDST_VERBOSE)")

	rootCmd.AddCommand(
		c.schemaCmd(),
		c.workloadCmd(crudst.Create, "Create the schema tables"),
		c.workloadCmd(crudst.Drop, "Drop the schema tables"),
		c.workloadCmd(crudst.Insert, "Insert random records into every schema table"),
		c.workloadCmd(crudst.Update, "Overwrite randomly sampled records of every schema table"),
		c.workloadCmd(crudst.Delete, "Delete randomly sampled records of every schema table"),
		c.randomCmd(),
	)
	return rootCmd
}

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate a random schema file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireShape(cmd); err != nil {
				return err
			}
			s, err := crudst.GenerateSchema(c.tables, c.columns, c.seed)
			if err != nil {
				return err
			}
			return c.writeSchema(s)
		},
	}
	c.shapeFlags(cmd)
	cmd.Flags().StringVarP(&c.outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func (c *cli) workloadCmd(w crudst.Workload, short string) *cobra.Command {
	mutating := w == crudst.Insert || w == crudst.Update || w == crudst.Delete
	cmd := &cobra.Command{
		Use:   w.String(),
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireDatabase(); err != nil {
				return err
			}
			if err := c.requireRecords(cmd, mutating); err != nil {
				return err
			}
			s, err := c.readSchema()
			if err != nil {
				return err
			}
			_, err = c.run(cmd.Context(), w, s)
			return err
		},
	}
	c.databaseFlag(cmd)
	cmd.Flags().StringVarP(&c.schemaFile, "schema", "s", "", "Schema file (default: stdin)")
	if mutating {
		cmd.Flags().IntVarP(&c.records, "records", "r", 0, "Records per table")
	}
	return cmd
}

func (c *cli) randomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Generate a schema, create its tables and insert random records",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireDatabase(); err != nil {
				return err
			}
			if err := c.requireShape(cmd); err != nil {
				return err
			}
			if err := c.requireRecords(cmd, true); err != nil {
				return err
			}

			r, err := c.run(cmd.Context(), crudst.Random, nil)
			if r != nil && r.Schema != nil && c.outputFile != "" {
				if werr := c.writeSchema(r.Schema); werr != nil {
					return errors.Join(err, werr)
				}
			}
			return err
		},
	}
	c.databaseFlag(cmd)
	c.shapeFlags(cmd)
	cmd.Flags().IntVarP(&c.records, "records", "r", 0, "Records per table")
	cmd.Flags().StringVarP(&c.outputFile, "output", "o", "", "Write the generated schema to this file")
	return cmd
}

func (c *cli) databaseFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.databaseURL, "database", "d", "", "Database URL: mongodb://, postgres://, mysql:// or sqlite:// (env CRUDST_DATABASE_URL)")
}

func (c *cli) shapeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&c.tables, "tables", "t", 0, "Number of tables")
	cmd.Flags().IntVarP(&c.columns, "columns", "c", 0, "Columns per table, not counting col_key")
}

func (c *cli) requireDatabase() error {
	if c.databaseURL == "" {
		c.databaseURL = c.env.DatabaseURL
	}
	if c.databaseURL == "" {
		return usagef("--database is required (or set CRUDST_DATABASE_URL)")
	}
	return nil
}

func (c *cli) requireShape(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("tables") || !cmd.Flags().Changed("columns") {
		return usagef("--tables and --columns are required")
	}
	return nil
}

func (c *cli) requireRecords(cmd *cobra.Command, required bool) error {
	if !required {
		return nil
	}
	if !cmd.Flags().Changed("records") {
		return usagef("--records is required")
	}
	if c.records < 0 {
		return usagef("--records must not be negative, got %d", c.records)
	}
	return nil
}

func (c *cli) run(ctx context.Context, w crudst.Workload, s *schema.Schema) (*crudst.Report, error) {
	r, err := crudst.Run(ctx, c.databaseURL, w, s, &crudst.Options{
		Records:         c.records,
		Tables:          c.tables,
		Columns:         c.columns,
		Workers:         c.workers,
		Seed:            c.seed,
		RequireExisting: c.requireExisting,
		Logger:          c.log,
	})
	if r != nil {
		if ferr := crudst.FormatReport(r, &crudst.OutputOptions{Writer: c.stdout, Format: c.format}); ferr != nil {
			return r, errors.Join(err, ferr)
		}
	}
	return r, err
}

func (c *cli) readSchema() (*schema.Schema, error) {
	in := c.stdin
	if c.schemaFile != "" {
		f, err := os.Open(c.schemaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema file: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	s, err := crudst.ReadSchema(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return s, nil
}

func (c *cli) writeSchema(s *schema.Schema) error {
	if c.outputFile == "" {
		return crudst.WriteSchema(c.stdout, s)
	}

	f, err := os.Create(c.outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			_, _ = fmt.Fprintf(c.stderr, "warning: failed to close output file: %v\n", err)
		}
	}()
	return crudst.WriteSchema(f, s)
}

// execute runs the CLI and returns the process exit status
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	env, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	rootCmd := newRootCmd(&cli{env: env, stdin: stdin, stdout: stdout, stderr: stderr})
	rootCmd.SetArgs(args)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return 2
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
