// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dangerclosesec/rbacsync/internal/backend"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

const (
	DefaultMaxConcurrency = 4
	DefaultRetryBackoff   = 250 * time.Millisecond
)

// Options configures one engine instance. The zero value is usable:
// non-destructive mode, small concurrency, no retries.
type Options struct {
	// Prune deletes live entities absent from desired state. Off by
	// default: unmanaged entities are left alone.
	Prune bool

	// MaxConcurrency caps the worker pool executing a tier.
	MaxConcurrency int

	// RetryLimit is the number of retries after the first attempt
	// for transient backend failures. Zero means every operation
	// gets exactly one attempt.
	RetryLimit int

	// RetryBackoff is the initial backoff interval between retries;
	// it grows exponentially.
	RetryBackoff time.Duration

	// DryRun computes and reports the plan without mutating the
	// backend.
	DryRun bool

	// Logger receives structured pass logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// withDefaults fills the settings whose zero value cannot work: a
// zero-size pool never runs and a zero backoff spins. RetryLimit is
// left alone so zero keeps meaning "no retries".
func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.RetryLimit < 0 {
		o.RetryLimit = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Engine converges one backend service to a declared desired state.
// It is a pure function of (desired, live): it holds no state across
// passes, so convergence is recomputed from scratch each run and a
// re-run after a fully successful pass is a no-op.
type Engine struct {
	adapter backend.Adapter
	opts    Options
	logger  *slog.Logger
}

// New creates an engine over the given backend adapter.
func New(adapter backend.Adapter, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{adapter: adapter, opts: opts, logger: opts.logger()}
}

// Plan validates desired state, fetches live state and returns the
// ordered operation plan without mutating anything.
func (e *Engine) Plan(ctx context.Context, desired *model.DesiredState) (*Plan, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	live, index, err := e.fetchLive(ctx)
	if err != nil {
		return nil, err
	}
	changes := e.diff(desired, live)
	return Resolve(changes, index)
}

// Reconcile runs one full pass: validate, fetch, diff, resolve,
// apply. The report is always returned; the error is non-nil only for
// the hard stops (validation failure, live-state fetch failure, pass
// cancellation). Per-operation failures are captured in the report.
func (e *Engine) Reconcile(ctx context.Context, desired *model.DesiredState) (*Report, error) {
	report := newReport()
	logger := e.logger.With("pass_id", uuid.NewString())

	if err := desired.Validate(); err != nil {
		report.Status = StatusFailed
		return report, err
	}

	live, index, err := e.fetchLive(ctx)
	if err != nil {
		report.Status = StatusFailed
		return report, err
	}

	changes := e.diff(desired, live)
	for kind, cs := range changes {
		if n := len(cs.Unchanged); n > 0 {
			report.Unchanged[kind] = n
		}
	}

	plan, err := Resolve(changes, index)
	if err != nil {
		report.Status = StatusFailed
		return report, err
	}

	if plan.Empty() {
		logger.Info("nothing to reconcile", "unchanged", report.TotalUnchanged())
		return report, nil
	}

	logger.Info("applying plan",
		"tiers", len(plan.Tiers),
		"operations", len(plan.Operations()),
		"prune", e.opts.Prune,
		"dry_run", e.opts.DryRun,
	)

	opts := e.opts
	opts.Logger = logger
	results, applyErr := NewApplier(e.adapter, opts).Apply(ctx, plan)
	for _, res := range results {
		report.record(res.Op, res)
	}
	report.finalize()

	logger.Info("pass complete", "status", string(report.Status), "summary", report.Summary())
	return report, applyErr
}

// fetchLive snapshots live state once per kind at pass start. The
// snapshot is read-only for the remainder of the pass.
func (e *Engine) fetchLive(ctx context.Context) (map[model.Kind][]model.Entity, map[model.Kind]map[string]model.Entity, error) {
	live := make(map[model.Kind][]model.Entity)
	index := make(map[model.Kind]map[string]model.Entity)

	for _, kind := range model.Kinds() {
		entities, err := e.adapter.FetchAll(ctx, kind)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching live %s state: %w", kind, err)
		}
		live[kind] = entities
		index[kind] = make(map[string]model.Entity, len(entities))
		for _, entity := range entities {
			index[kind][entity.IdentityKey()] = entity
		}
		e.logger.Debug("fetched live state", "kind", string(kind), "count", len(entities))
	}
	return live, index, nil
}

func (e *Engine) diff(desired *model.DesiredState, live map[model.Kind][]model.Entity) map[model.Kind]ChangeSet {
	changes := make(map[model.Kind]ChangeSet, len(model.Kinds()))
	for _, kind := range model.Kinds() {
		changes[kind] = Diff(desired.Entities(kind), live[kind], e.opts.Prune)
	}
	return changes
}
