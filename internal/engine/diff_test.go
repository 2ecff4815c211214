// internal/engine/diff_test.go
package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangerclosesec/rbacsync/internal/engine"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

func TestDiff(t *testing.T) {
	desired := []model.Entity{
		model.Organization{Name: "eng", Description: "Engineering"},
		model.Organization{Name: "sales"},
	}
	live := []model.Entity{
		model.Organization{Name: "eng", Description: "stale description"},
		model.Organization{Name: "legacy"},
	}

	t.Run("non-destructive mode never deletes", func(t *testing.T) {
		cs := engine.Diff(desired, live, false)
		require.Len(t, cs.Creates, 1)
		assert.Equal(t, "sales", cs.Creates[0].IdentityKey())
		require.Len(t, cs.Updates, 1)
		assert.Equal(t, "eng", cs.Updates[0].IdentityKey())
		assert.Empty(t, cs.Deletes)
	})

	t.Run("prune mode deletes live-only entities", func(t *testing.T) {
		cs := engine.Diff(desired, live, true)
		require.Len(t, cs.Deletes, 1)
		assert.Equal(t, "legacy", cs.Deletes[0].IdentityKey())
	})

	t.Run("equal entities are unchanged", func(t *testing.T) {
		cs := engine.Diff(
			[]model.Entity{model.Organization{Name: "eng", Description: "Engineering"}},
			[]model.Entity{model.Organization{Name: "eng", Description: "Engineering"}},
			true,
		)
		assert.True(t, cs.Empty())
		require.Len(t, cs.Unchanged, 1)
	})

	t.Run("identical duplicates collapse", func(t *testing.T) {
		cs := engine.Diff(
			[]model.Entity{
				model.Organization{Name: "eng"},
				model.Organization{Name: "eng"},
			},
			nil,
			false,
		)
		assert.Len(t, cs.Creates, 1)
	})

	t.Run("permission order does not trigger updates", func(t *testing.T) {
		cs := engine.Diff(
			[]model.Entity{model.RoleDefinition{Name: "admin", Permissions: []string{"write", "read"}, Scope: model.ScopeGlobal}},
			[]model.Entity{model.RoleDefinition{Name: "admin", Permissions: []string{"read", "write"}, Scope: model.ScopeGlobal}},
			false,
		)
		assert.True(t, cs.Empty())
	})

	t.Run("permission set change is an update", func(t *testing.T) {
		cs := engine.Diff(
			[]model.Entity{model.RoleDefinition{Name: "admin", Permissions: []string{"read", "write", "delete"}, Scope: model.ScopeGlobal}},
			[]model.Entity{model.RoleDefinition{Name: "admin", Permissions: []string{"read", "write"}, Scope: model.ScopeGlobal}},
			false,
		)
		require.Len(t, cs.Updates, 1)
	})

	t.Run("results are sorted by key", func(t *testing.T) {
		cs := engine.Diff(
			[]model.Entity{
				model.Organization{Name: "zeta"},
				model.Organization{Name: "alpha"},
			},
			nil,
			false,
		)
		require.Len(t, cs.Creates, 2)
		assert.Equal(t, "alpha", cs.Creates[0].IdentityKey())
		assert.Equal(t, "zeta", cs.Creates[1].IdentityKey())
	})
}
