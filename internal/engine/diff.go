// internal/engine/diff.go
package engine

import (
	"reflect"
	"sort"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// Action is the mutation an operation performs against the backend.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChangeSet is the diff for a single entity kind. The four lists are
// disjoint and each is sorted by identity key so plans are
// deterministic regardless of adapter iteration order.
type ChangeSet struct {
	Creates   []model.Entity
	Updates   []model.Entity
	Deletes   []model.Entity
	Unchanged []model.Entity
}

// Empty reports whether the change set carries no mutations.
func (c ChangeSet) Empty() bool {
	return len(c.Creates) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}

// Diff compares desired against live for one kind. Entities only in
// desired are creates, entities in both with differing attributes are
// updates, and entities only in live are deletes when prune is set.
// With prune disabled live-only entities are considered out-of-band
// and never touched. Identical duplicates in desired collapse to a
// single logical entity; conflicting duplicates were already rejected
// by validation.
func Diff(desired, live []model.Entity, prune bool) ChangeSet {
	liveByKey := make(map[string]model.Entity, len(live))
	for _, e := range live {
		liveByKey[e.IdentityKey()] = e
	}

	var cs ChangeSet
	seen := make(map[string]struct{}, len(desired))
	for _, want := range desired {
		key := want.IdentityKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		have, exists := liveByKey[key]
		switch {
		case !exists:
			cs.Creates = append(cs.Creates, want)
		case reflect.DeepEqual(want.Attributes(), have.Attributes()):
			cs.Unchanged = append(cs.Unchanged, want)
		default:
			cs.Updates = append(cs.Updates, want)
		}
	}

	if prune {
		for _, have := range live {
			if _, declared := seen[have.IdentityKey()]; !declared {
				cs.Deletes = append(cs.Deletes, have)
			}
		}
	}

	sortEntities(cs.Creates)
	sortEntities(cs.Updates)
	sortEntities(cs.Deletes)
	sortEntities(cs.Unchanged)
	return cs
}

func sortEntities(entities []model.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].IdentityKey() < entities[j].IdentityKey()
	})
}
