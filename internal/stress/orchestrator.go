// Package stress runs CRUD workloads over every table of a schema against a
// storage adapter and reports what was done.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/tordrt/crudst/internal/datagen"
	"github.com/tordrt/crudst/internal/schema"
	"github.com/tordrt/crudst/internal/store"
)

// ErrUnknownWorkload is returned by ParseWorkload for names it does not know
var ErrUnknownWorkload = fmt.Errorf("%w: unknown workload", schema.ErrInvalidArgument)

// Workload is one top-level stress operation applied across all tables
type Workload int

const (
	Create Workload = iota + 1
	Drop
	Insert
	Update
	Delete
	Random
)

var workloadNames = map[Workload]string{
	Create: "create",
	Drop:   "drop",
	Insert: "insert",
	Update: "update",
	Delete: "delete",
	Random: "random",
}

func (w Workload) String() string {
	if name, ok := workloadNames[w]; ok {
		return name
	}
	return fmt.Sprintf("workload(%d)", int(w))
}

// ParseWorkload converts a workload name to a Workload
func ParseWorkload(name string) (Workload, error) {
	for w, n := range workloadNames {
		if strings.EqualFold(n, name) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWorkload, name)
}

type Config struct {
	Adapter   store.Adapter
	Generator *datagen.Generator
	Logger    *slog.Logger
	Clock     clockwork.Clock
	// Workers bounds how many tables are processed at once. 1 is sequential.
	Workers int
	// RequireExisting makes drop, update and delete fail with
	// store.ErrObjectNotFound instead of creating missing tables.
	RequireExisting bool
}

func (cfg *Config) Validate() error {
	if cfg.Adapter == nil {
		return errors.New("adapter is required")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", schema.ErrInvalidArgument, cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Generator == nil {
		cfg.Generator = datagen.NewRandom()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Params carries the inputs of a workload. Schema is required by every
// workload except Random, which generates one from Tables and Columns.
// Records is the per-table record count for insert, update, delete and random.
type Params struct {
	Schema  *schema.Schema
	Records int
	Tables  int
	Columns int
}

// Orchestrator executes workloads against one adapter. It is not safe for
// concurrent use; per-table fan-out happens inside a single Run.
type Orchestrator struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run executes workload w. The returned report is never nil; when err is
// not nil it describes the work done before the failure.
func (o *Orchestrator) Run(ctx context.Context, w Workload, p Params) (*Report, error) {
	report := &Report{
		RunID:    uuid.New(),
		Workload: w,
		Backend:  o.cfg.Adapter.Backend(),
		Atomic:   o.cfg.Adapter.Kind() == store.Relational,
		Schema:   p.Schema,
	}
	start := o.cfg.Clock.Now()
	log := o.log.With("run_id", report.RunID, "workload", w.String(), "backend", report.Backend)

	log.Info("stress: starting workload", "records", p.Records, "workers", o.cfg.Workers)
	err := o.run(ctx, report, w, p)
	report.Elapsed = o.cfg.Clock.Since(start)
	if err != nil {
		log.Error("stress: workload failed", "elapsed", report.Elapsed, "error", err)
		return report, err
	}
	log.Info("stress: workload finished", "elapsed", report.Elapsed, "affected", report.Affected())
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, report *Report, w Workload, p Params) error {
	if p.Records < 0 {
		return fmt.Errorf("%w: record count must not be negative, got %d", schema.ErrInvalidArgument, p.Records)
	}
	if w == Random {
		s, err := schema.Generate(o.cfg.Generator.Rand(), p.Tables, p.Columns)
		if err != nil {
			return fmt.Errorf("failed to generate schema: %w", err)
		}
		report.Schema = s
		p.Schema = s
	}
	if p.Schema == nil {
		return fmt.Errorf("%w: schema is required for %s", schema.ErrInvalidArgument, w)
	}
	if err := p.Schema.Validate(); err != nil {
		return err
	}

	switch w {
	case Create:
		return o.materialize(ctx, report, p.Schema)
	case Drop:
		if err := o.ensure(ctx, report, p.Schema); err != nil {
			return err
		}
		return o.phase(ctx, report, "teardown", func(ctx context.Context) error {
			return o.cfg.Adapter.TearDown(ctx, p.Schema)
		})
	case Insert:
		return o.forEachTable(ctx, report, p, "insert", o.insert)
	case Update:
		if err := o.ensure(ctx, report, p.Schema); err != nil {
			return err
		}
		return o.forEachTable(ctx, report, p, "update", o.update)
	case Delete:
		if err := o.ensure(ctx, report, p.Schema); err != nil {
			return err
		}
		return o.forEachTable(ctx, report, p, "delete", o.delete)
	case Random:
		if err := o.materialize(ctx, report, p.Schema); err != nil {
			return err
		}
		return o.forEachTable(ctx, report, p, "insert", o.insert)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownWorkload, int(w))
	}
}

func (o *Orchestrator) materialize(ctx context.Context, report *Report, s *schema.Schema) error {
	return o.phase(ctx, report, "materialize", func(ctx context.Context) error {
		return o.cfg.Adapter.Materialize(ctx, s)
	})
}

// ensure materializes the schema tables missing from the target, or fails
// with store.ErrObjectNotFound when RequireExisting is set. Document stores
// create collections on first write, so for them Created only names the
// collections that did not exist yet.
func (o *Orchestrator) ensure(ctx context.Context, report *Report, s *schema.Schema) error {
	present, err := o.cfg.Adapter.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	missing := missingTables(s, present)
	if len(missing) == 0 {
		return nil
	}

	if o.cfg.RequireExisting {
		return fmt.Errorf("%w: %s", store.ErrObjectNotFound, strings.Join(missing, ", "))
	}

	o.log.Warn("stress: materializing missing tables", "tables", missing)
	if err := o.materialize(ctx, report, s.Subset(missing)); err != nil {
		return err
	}
	report.Created = missing
	return nil
}

func (o *Orchestrator) phase(ctx context.Context, report *Report, name string, fn func(context.Context) error) error {
	start := o.cfg.Clock.Now()
	err := fn(ctx)
	elapsed := o.cfg.Clock.Since(start)
	report.Phases = append(report.Phases, Phase{Name: name, Elapsed: elapsed})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", name, err)
	}
	o.log.Debug("stress: phase done", "phase", name, "elapsed", elapsed)
	return nil
}

type tableFunc func(ctx context.Context, table *schema.Table, records int, gen *datagen.Generator) (int, error)

func (o *Orchestrator) insert(ctx context.Context, table *schema.Table, records int, gen *datagen.Generator) (int, error) {
	return o.cfg.Adapter.BulkInsert(ctx, table, table.ColumnList(false), records, gen)
}

func (o *Orchestrator) update(ctx context.Context, table *schema.Table, records int, gen *datagen.Generator) (int, error) {
	res, err := o.cfg.Adapter.BulkUpdate(ctx, table, table.ColumnList(false), records, gen)
	return res.Applied, err
}

func (o *Orchestrator) delete(ctx context.Context, table *schema.Table, records int, gen *datagen.Generator) (int, error) {
	res, err := o.cfg.Adapter.BulkDelete(ctx, table, records, gen)
	return res.Applied, err
}

// forEachTable applies fn to every table in schema order, or across up to
// Workers goroutines. Each table gets its own generator forked up front, so
// a seeded run produces the same data whatever the worker count.
func (o *Orchestrator) forEachTable(ctx context.Context, report *Report, p Params, op string, fn tableFunc) error {
	tables := p.Schema.Tables
	gens := make([]*datagen.Generator, len(tables))
	for i := range gens {
		gens[i] = o.cfg.Generator.Fork()
	}
	results := make([]TableResult, len(tables))
	done := make([]bool, len(tables))

	var err error
	if o.cfg.Workers <= 1 {
		for i := range tables {
			results[i], err = o.runTable(ctx, &tables[i], p.Records, gens[i], op, fn)
			done[i] = true
			if err != nil {
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.Workers)
		for i := range tables {
			g.Go(func() error {
				res, err := o.runTable(gctx, &tables[i], p.Records, gens[i], op, fn)
				results[i] = res
				done[i] = true
				return err
			})
		}
		err = g.Wait()
	}

	for i := range results {
		if done[i] {
			report.Tables = append(report.Tables, results[i])
		}
	}
	return err
}

func (o *Orchestrator) runTable(ctx context.Context, table *schema.Table, records int, gen *datagen.Generator, op string, fn tableFunc) (TableResult, error) {
	start := o.cfg.Clock.Now()
	affected, err := fn(ctx, table, records, gen)
	res := TableResult{
		Table:     table.Name,
		Requested: records,
		Affected:  affected,
		Elapsed:   o.cfg.Clock.Since(start),
	}
	if err != nil {
		var mutErr *store.MutationError
		if errors.As(err, &mutErr) && !mutErr.RolledBack {
			o.log.Warn("stress: mutation partially applied", "table", table.Name, "op", op, "applied", mutErr.Applied)
		}
		return res, fmt.Errorf("failed to %s %s: %w", op, table.Name, err)
	}

	o.log.Debug("stress: table done", "table", table.Name, "op", op, "requested", records, "affected", affected, "elapsed", res.Elapsed)
	return res, nil
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
