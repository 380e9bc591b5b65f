package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/logging"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a run when no timeout option is given.
var DefaultTimeout = 10 * time.Minute

// Runner executes pipeline runs one at a time.
type Runner struct {
	source      Source
	dest        Destination
	history     History
	exporter    Exporter
	observers   []Observer
	diagnostics core.Diagnostics
	timeout     time.Duration
	now         func() time.Time

	// runMu is held for the whole of a run
	runMu sync.Mutex

	mu      sync.RWMutex
	running *Summary
	last    *Summary
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records every finished run.
func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

// WithExporter exports cleaned tables after a successful load.
func WithExporter(e Exporter) Option {
	return func(r *Runner) { r.exporter = e }
}

// WithObserver adds a run observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithDiagnostics forwards every event of every run to d, in addition to the
// run log and the run summary.
func WithDiagnostics(d core.Diagnostics) Option {
	return func(r *Runner) { r.diagnostics = d }
}

// WithTimeout bounds each run. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner reading from src and writing to dst.
func NewRunner(src Source, dst Destination, opts ...Option) *Runner {
	r := &Runner{
		source:  src,
		dest:    dst,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running != nil
}

// Last returns the summary of the most recent finished run.
func (r *Runner) Last() (*Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.last != nil
}

// Run executes one run synchronously. It returns ErrRunInProgress without
// doing anything if another run is active. The summary is returned even when
// the run fails.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	return r.run(ctx, r.begin())
}

// Start claims the runner and executes a run in the background. The returned
// summary is the in-flight run; its final state is available from Last once
// the run finishes. The run is detached from ctx cancellation but keeps its
// values.
func (r *Runner) Start(ctx context.Context) (*Summary, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}

	summary := r.begin()
	snapshot := *summary
	snapshot.Tables = map[string]TableStats{}
	bg := context.WithoutCancel(ctx)

	go func() {
		defer r.runMu.Unlock()
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic in pipeline run",
					"run_id", summary.RunID,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				if summary.FinishedAt.IsZero() {
					r.finish(summary, fmt.Errorf("panic: %v", p))
				}
			}
		}()
		_, _ = r.run(bg, summary)
	}()

	return &snapshot, nil
}

func (r *Runner) begin() *Summary {
	summary := &Summary{
		RunID:     uuid.New(),
		StartedAt: r.now(),
		Status:    StatusRunning,
		Tables:    make(map[string]TableStats, len(Tables)),
	}

	r.mu.Lock()
	r.running = summary
	r.mu.Unlock()

	return summary
}

func (r *Runner) run(ctx context.Context, summary *Summary) (*Summary, error) {
	ctx = logging.ContextWithRunID(ctx, summary.RunID.String())
	log := logging.FromContext(ctx)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	collector := &core.Collector{}
	diag := core.Tee(collector, core.SlogSink{Logger: log}, r.diagnostics)

	log.Info("pipeline run started")

	err := r.execute(ctx, diag, collector, summary)

	summary.Events = collector.Events()
	summary.Warnings = len(collector.Warnings())
	r.finish(summary, err)

	if r.history != nil {
		if herr := r.history.Record(context.WithoutCancel(ctx), summary); herr != nil {
			log.Warn("failed to record pipeline run", "error", herr)
		}
	}

	if err != nil {
		log.Error("pipeline run failed",
			"error", err,
			"duration", summary.Duration(),
			"warnings", summary.Warnings,
		)
		return summary, err
	}

	log.Info("pipeline run finished",
		"duration", summary.Duration(),
		"warnings", summary.Warnings,
		"students", summary.Tables[core.TableStudents].Loaded,
		"courses", summary.Tables[core.TableCourses].Loaded,
		"jobs", summary.Tables[core.TableJobs].Loaded,
	)
	return summary, nil
}

// finish stamps the outcome, publishes the summary as the last run and
// notifies observers.
func (r *Runner) finish(summary *Summary, err error) {
	summary.FinishedAt = r.now()
	if err != nil {
		summary.Status = StatusFailed
		summary.Error = err.Error()
	} else {
		summary.Status = StatusSucceeded
	}

	r.mu.Lock()
	r.running = nil
	r.last = summary
	r.mu.Unlock()

	for _, o := range r.observers {
		o.ObserveRun(summary)
	}
}

func (r *Runner) execute(ctx context.Context, diag core.Diagnostics, collector *core.Collector, summary *Summary) error {
	raw := make(map[string]*core.RecordSet, len(Tables))
	for _, table := range Tables {
		rs, err := r.source.Extract(ctx, table)
		if err != nil {
			return fmt.Errorf("extract %s: %w", table, err)
		}
		raw[table] = rs
		summary.update(table, func(st *TableStats) { st.Extracted = rs.Len() })
	}

	students, err := core.CleanStudents(raw[core.TableStudents], diag)
	if err != nil {
		return fmt.Errorf("clean %s: %w", core.TableStudents, err)
	}
	courses, err := core.CleanCourses(raw[core.TableCourses], diag)
	if err != nil {
		return fmt.Errorf("clean %s: %w", core.TableCourses, err)
	}
	jobs, err := core.CleanJobs(raw[core.TableJobs], diag)
	if err != nil {
		return fmt.Errorf("clean %s: %w", core.TableJobs, err)
	}

	cleaned := []*core.RecordSet{students, courses, jobs}
	for i, table := range Tables {
		n := cleaned[i].Len()
		summary.update(table, func(st *TableStats) { st.Cleaned = n })
	}

	if err := core.AuditForeignKeys(students, jobs, courses, diag); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	// Each replace commits on its own; a failure here leaves earlier tables loaded.
	for i, table := range Tables {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		n, err := r.dest.Replace(ctx, cleaned[i])
		if err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		summary.update(table, func(st *TableStats) { st.Loaded = n })
	}

	if r.exporter != nil {
		if err := r.exporter.Export(cleaned, collector.Events()); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	return nil
}
