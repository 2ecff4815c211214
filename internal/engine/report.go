// internal/engine/report.go
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// Outcome is the terminal state of a single operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"

	// OutcomePlanned marks operations that were computed but not
	// executed because the pass ran in dry-run mode.
	OutcomePlanned Outcome = "planned"
)

// Status is the overall result of a pass.
type Status string

const (
	// StatusConverged means every operation succeeded (or no
	// operation was needed).
	StatusConverged Status = "converged"

	// StatusPartiallyConverged means some operations failed or were
	// skipped; re-running the pass will retry them.
	StatusPartiallyConverged Status = "partially_converged"

	// StatusFailed means the pass aborted before executing anything,
	// e.g. on invalid desired state or a live-state fetch error.
	StatusFailed Status = "failed"
)

// CountKey indexes the report counters by kind, action and outcome.
type CountKey struct {
	Kind    model.Kind
	Action  Action
	Outcome Outcome
}

// Failure describes one failed or skipped operation with enough
// detail to act on.
type Failure struct {
	Kind      model.Kind
	Key       string
	Action    Action
	Outcome   Outcome
	Reason    string
	BlockedBy []model.Ref
}

// Report aggregates the outcomes of one reconciliation pass.
type Report struct {
	Status    Status
	Counts    map[CountKey]int
	Unchanged map[model.Kind]int

	// Failures lists failed and skipped operations in execution
	// order.
	Failures []Failure
}

func newReport() *Report {
	return &Report{
		Status:    StatusConverged,
		Counts:    make(map[CountKey]int),
		Unchanged: make(map[model.Kind]int),
	}
}

func (r *Report) record(op *Operation, res OperationResult) {
	r.Counts[CountKey{Kind: op.Entity.Kind(), Action: op.Action, Outcome: res.Outcome}]++

	switch res.Outcome {
	case OutcomeFailed:
		r.Failures = append(r.Failures, Failure{
			Kind:    op.Entity.Kind(),
			Key:     op.Entity.IdentityKey(),
			Action:  op.Action,
			Outcome: OutcomeFailed,
			Reason:  res.Err.Error(),
		})
	case OutcomeSkipped:
		reason := "blocked by failed dependency"
		if res.Err != nil {
			reason = "pass cancelled: " + res.Err.Error()
		}
		r.Failures = append(r.Failures, Failure{
			Kind:      op.Entity.Kind(),
			Key:       op.Entity.IdentityKey(),
			Action:    op.Action,
			Outcome:   OutcomeSkipped,
			Reason:    reason,
			BlockedBy: res.BlockedBy,
		})
	}
}

// Total sums the counters for one action and outcome across kinds.
func (r *Report) Total(action Action, outcome Outcome) int {
	n := 0
	for key, count := range r.Counts {
		if key.Action == action && key.Outcome == outcome {
			n += count
		}
	}
	return n
}

// TotalOutcome sums the counters for one outcome across all actions.
func (r *Report) TotalOutcome(outcome Outcome) int {
	n := 0
	for key, count := range r.Counts {
		if key.Outcome == outcome {
			n += count
		}
	}
	return n
}

// TotalUnchanged sums the entities that already matched desired
// state.
func (r *Report) TotalUnchanged() int {
	n := 0
	for _, count := range r.Unchanged {
		n += count
	}
	return n
}

// Converged reports whether the pass left nothing to do.
func (r *Report) Converged() bool { return r.Status == StatusConverged }

// Summary renders a one-line result for logs and the CLI.
func (r *Report) Summary() string {
	if r.TotalOutcome(OutcomePlanned) > 0 {
		return fmt.Sprintf("dry run: %d to create, %d to update, %d to delete, %d unchanged",
			r.Total(ActionCreate, OutcomePlanned),
			r.Total(ActionUpdate, OutcomePlanned),
			r.Total(ActionDelete, OutcomePlanned),
			r.TotalUnchanged(),
		)
	}
	return fmt.Sprintf("%s: %d created, %d updated, %d deleted, %d unchanged, %d failed, %d skipped",
		r.Status,
		r.Total(ActionCreate, OutcomeSuccess),
		r.Total(ActionUpdate, OutcomeSuccess),
		r.Total(ActionDelete, OutcomeSuccess),
		r.TotalUnchanged(),
		r.TotalOutcome(OutcomeFailed),
		r.TotalOutcome(OutcomeSkipped),
	)
}

// Details renders per-failure lines in a stable order.
func (r *Report) Details() string {
	if len(r.Failures) == 0 {
		return ""
	}
	lines := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		line := fmt.Sprintf("%s %s %q: %s", f.Outcome, f.Action, fmt.Sprintf("%s:%s", f.Kind, f.Key), f.Reason)
		if len(f.BlockedBy) > 0 {
			refs := make([]string, 0, len(f.BlockedBy))
			for _, ref := range f.BlockedBy {
				refs = append(refs, ref.String())
			}
			sort.Strings(refs)
			line += " (" + strings.Join(refs, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// finalize derives the overall status from the recorded outcomes.
func (r *Report) finalize() {
	if r.TotalOutcome(OutcomeFailed) > 0 || r.TotalOutcome(OutcomeSkipped) > 0 {
		r.Status = StatusPartiallyConverged
		return
	}
	r.Status = StatusConverged
}
