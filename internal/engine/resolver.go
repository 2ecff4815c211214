// internal/engine/resolver.go
package engine

import (
	"fmt"
	"sort"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// Operation is one unit of work against the backend. For deletes the
// entity is the live entity being removed.
type Operation struct {
	Action Action
	Entity model.Entity
}

// Ref returns the reference of the entity the operation touches.
func (o *Operation) Ref() model.Ref { return o.Entity.Ref() }

func (o *Operation) String() string {
	return string(o.Action) + " " + o.Ref().String()
}

// Plan is the ordered execution plan for one pass. Operations within
// a tier have no dependency relation among themselves and may run
// concurrently; tier N+1 never starts before tier N has been fully
// attempted.
type Plan struct {
	Tiers [][]*Operation

	requires map[*Operation][]*Operation
}

// Requires returns the operations that must succeed before op may
// run. The applier skips op when any of them failed.
func (p *Plan) Requires(op *Operation) []*Operation {
	return p.requires[op]
}

// Operations returns every operation in execution order.
func (p *Plan) Operations() []*Operation {
	var out []*Operation
	for _, tier := range p.Tiers {
		out = append(out, tier...)
	}
	return out
}

// Empty reports whether the plan carries no work.
func (p *Plan) Empty() bool { return len(p.Tiers) == 0 }

// Resolve orders the union of per-kind change sets into tiers.
// Creates and updates run after the creates of anything they
// reference; deletes run before the deletes of anything they
// reference, so no dangling reference is ever left behind. A
// reference that neither exists live nor is being created, a
// reference to an entity being pruned in the same pass (whether the
// referencing entity is changing or already converged), and a
// dependency cycle are all fatal: Resolve returns a ValidationError
// and nothing is executed.
func Resolve(changes map[model.Kind]ChangeSet, live map[model.Kind]map[string]model.Entity) (*Plan, error) {
	var ops []*Operation
	createByRef := make(map[model.Ref]*Operation)
	deleteByRef := make(map[model.Ref]*Operation)

	for _, kind := range model.Kinds() {
		cs := changes[kind]
		for _, e := range cs.Creates {
			op := &Operation{Action: ActionCreate, Entity: e}
			createByRef[op.Ref()] = op
			ops = append(ops, op)
		}
		for _, e := range cs.Updates {
			ops = append(ops, &Operation{Action: ActionUpdate, Entity: e})
		}
		for _, e := range cs.Deletes {
			op := &Operation{Action: ActionDelete, Entity: e}
			deleteByRef[op.Ref()] = op
			ops = append(ops, op)
		}
	}

	requires := make(map[*Operation][]*Operation)
	var problems []string

	for _, op := range ops {
		switch op.Action {
		case ActionCreate, ActionUpdate:
			for _, ref := range op.Entity.DependencyRefs() {
				if dep, ok := createByRef[ref]; ok {
					requires[op] = append(requires[op], dep)
					continue
				}
				if _, ok := deleteByRef[ref]; ok {
					problems = append(problems, fmt.Sprintf("%s references %s which is being pruned in the same pass", op, ref))
					continue
				}
				if _, ok := live[ref.Kind][ref.Key]; ok {
					continue
				}
				problems = append(problems, fmt.Sprintf("%s references %s which does not exist and is not being created", op, ref))
			}
		case ActionDelete:
			// Reverse order: the delete of a referenced entity
			// waits for the deletes of everything referencing it.
			for _, ref := range op.Entity.DependencyRefs() {
				if dep, ok := deleteByRef[ref]; ok {
					requires[dep] = append(requires[dep], op)
				}
			}
		}
	}

	// Unchanged declared entities carry no operation, but their
	// references still pin what prune may delete.
	for _, kind := range model.Kinds() {
		for _, e := range changes[kind].Unchanged {
			for _, ref := range e.DependencyRefs() {
				if _, ok := deleteByRef[ref]; ok {
					problems = append(problems, fmt.Sprintf("%s references %s which is being pruned in the same pass", e.Ref(), ref))
				}
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &model.ValidationError{Problems: problems}
	}

	return layer(ops, requires)
}

// layer performs Kahn's algorithm over the requirement edges,
// emitting one tier per round of dependency-free operations.
func layer(ops []*Operation, requires map[*Operation][]*Operation) (*Plan, error) {
	pending := make(map[*Operation]int, len(ops))
	dependents := make(map[*Operation][]*Operation)
	for _, op := range ops {
		pending[op] = len(requires[op])
		for _, dep := range requires[op] {
			dependents[dep] = append(dependents[dep], op)
		}
	}

	plan := &Plan{requires: requires}
	remaining := len(ops)
	ready := make([]*Operation, 0, len(ops))

	for remaining > 0 {
		ready = ready[:0]
		for _, op := range ops {
			if deg, ok := pending[op]; ok && deg == 0 {
				ready = append(ready, op)
			}
		}
		if len(ready) == 0 {
			var stuck []string
			for op, deg := range pending {
				if deg > 0 {
					stuck = append(stuck, op.String())
				}
			}
			sort.Strings(stuck)
			return nil, &model.ValidationError{
				Problems: []string{fmt.Sprintf("dependency cycle involving: %v", stuck)},
			}
		}

		sortOperations(ready)
		tier := make([]*Operation, len(ready))
		copy(tier, ready)
		plan.Tiers = append(plan.Tiers, tier)

		for _, op := range tier {
			delete(pending, op)
			remaining--
			for _, next := range dependents[op] {
				pending[next]--
			}
		}
	}

	return plan, nil
}

var kindOrder = func() map[model.Kind]int {
	order := make(map[model.Kind]int)
	for i, k := range model.Kinds() {
		order[k] = i
	}
	return order
}()

var actionOrder = map[Action]int{
	ActionCreate: 0,
	ActionUpdate: 1,
	ActionDelete: 2,
}

// sortOperations fixes the order within a tier so plans, logs and
// reports come out identical across runs.
func sortOperations(ops []*Operation) {
	sort.Slice(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if actionOrder[a.Action] != actionOrder[b.Action] {
			return actionOrder[a.Action] < actionOrder[b.Action]
		}
		if kindOrder[a.Entity.Kind()] != kindOrder[b.Entity.Kind()] {
			return kindOrder[a.Entity.Kind()] < kindOrder[b.Entity.Kind()]
		}
		return a.Entity.IdentityKey() < b.Entity.IdentityKey()
	})
}
