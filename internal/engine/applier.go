// internal/engine/applier.go
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/dangerclosesec/rbacsync/internal/backend"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

// OperationResult is the terminal outcome of one operation.
type OperationResult struct {
	Op       *Operation
	Outcome  Outcome
	Err      error
	Attempts int

	// BlockedBy names the failed prerequisites when the outcome is
	// skipped.
	BlockedBy []model.Ref
}

// Applier executes a plan tier by tier against the backend adapter.
// Operations within a tier run concurrently on a bounded worker pool;
// a tier is fully attempted before the next one starts. A failed
// operation never aborts the pass: independent operations continue
// and dependents are skipped.
type Applier struct {
	adapter backend.Adapter
	opts    Options
	logger  *slog.Logger
}

// NewApplier creates an applier. Opts must already have defaults
// applied.
func NewApplier(adapter backend.Adapter, opts Options) *Applier {
	return &Applier{adapter: adapter, opts: opts, logger: opts.logger()}
}

// Apply runs the plan to completion and returns every operation
// result in execution order. Cancelling ctx stops new operations from
// starting while in-flight ones complete; the unstarted remainder is
// recorded as skipped and ctx's error is returned alongside the
// partial results. Nothing already applied is rolled back.
func (a *Applier) Apply(ctx context.Context, plan *Plan) ([]OperationResult, error) {
	outcomes := make(map[*Operation]Outcome)
	var results []OperationResult

	for _, tier := range plan.Tiers {
		tierResults := make([]OperationResult, len(tier))

		sem := make(chan struct{}, a.opts.MaxConcurrency)
		var wg sync.WaitGroup
		for i, op := range tier {
			if err := ctx.Err(); err != nil {
				tierResults[i] = OperationResult{Op: op, Outcome: OutcomeSkipped, Err: err}
				continue
			}
			if blocked := a.blockedBy(plan, op, outcomes); len(blocked) > 0 {
				tierResults[i] = OperationResult{Op: op, Outcome: OutcomeSkipped, BlockedBy: blocked}
				a.logger.Warn("skipping operation, dependency failed",
					"op", op.String(),
					"blocked_by", blocked,
				)
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(i int, op *Operation) {
				defer wg.Done()
				defer func() { <-sem }()
				tierResults[i] = a.execute(ctx, op)
			}(i, op)
		}
		wg.Wait()

		for i, op := range tier {
			outcomes[op] = tierResults[i].Outcome
			results = append(results, tierResults[i])
		}

		if err := ctx.Err(); err != nil {
			return a.skipRemaining(plan, outcomes, results), err
		}
	}

	return results, nil
}

// skipRemaining records every operation the cancelled pass never
// reached so the report accounts for the whole plan.
func (a *Applier) skipRemaining(plan *Plan, outcomes map[*Operation]Outcome, results []OperationResult) []OperationResult {
	for _, tier := range plan.Tiers {
		for _, op := range tier {
			if _, done := outcomes[op]; done {
				continue
			}
			outcomes[op] = OutcomeSkipped
			results = append(results, OperationResult{Op: op, Outcome: OutcomeSkipped, Err: context.Canceled})
		}
	}
	return results
}

// blockedBy returns the refs of prerequisites that failed or were
// themselves skipped. Skips propagate so a whole dependent subtree is
// reported, not just the first level.
func (a *Applier) blockedBy(plan *Plan, op *Operation, outcomes map[*Operation]Outcome) []model.Ref {
	var blocked []model.Ref
	for _, dep := range plan.Requires(op) {
		switch outcomes[dep] {
		case OutcomeFailed, OutcomeSkipped:
			blocked = append(blocked, dep.Ref())
		}
	}
	return blocked
}

// execute runs a single operation, retrying transient backend
// failures with exponential backoff. Permanent failures and exhausted
// retries are returned as a failed result.
func (a *Applier) execute(ctx context.Context, op *Operation) OperationResult {
	if a.opts.DryRun {
		a.logger.Info("would apply operation (dry run)", "op", op.String())
		return OperationResult{Op: op, Outcome: OutcomePlanned}
	}

	attempts := 0
	try := func() (struct{}, error) {
		attempts++
		err := a.invoke(ctx, op)
		if err == nil {
			return struct{}{}, nil
		}
		if !backend.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		a.logger.Warn("transient backend failure, will retry",
			"op", op.String(),
			"attempt", attempts,
			"error", err,
		)
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.opts.RetryBackoff

	// RetryLimit counts retries after the first attempt.
	_, err := backoff.Retry(ctx, try,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(a.opts.RetryLimit)+1),
	)
	if err != nil {
		a.logger.Error("operation failed",
			"op", op.String(),
			"attempts", attempts,
			"error", err,
		)
		return OperationResult{Op: op, Outcome: OutcomeFailed, Err: err, Attempts: attempts}
	}

	a.logger.Info("applied operation", "op", op.String(), "attempts", attempts)
	return OperationResult{Op: op, Outcome: OutcomeSuccess, Attempts: attempts}
}

// invoke dispatches one adapter call. No lock is held here; all
// bookkeeping happens on the applier goroutine.
func (a *Applier) invoke(ctx context.Context, op *Operation) error {
	switch op.Action {
	case ActionCreate:
		_, err := a.adapter.Create(ctx, op.Entity)
		return err
	case ActionUpdate:
		return a.adapter.Update(ctx, op.Entity)
	default:
		return a.adapter.Delete(ctx, op.Ref())
	}
}
