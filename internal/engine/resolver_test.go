// internal/engine/resolver_test.go
package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangerclosesec/rbacsync/internal/engine"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

func noLive() map[model.Kind]map[string]model.Entity {
	return map[model.Kind]map[string]model.Entity{}
}

// tierOf returns the tier index holding the operation, or -1.
func tierOf(plan *engine.Plan, opString string) int {
	for i, tier := range plan.Tiers {
		for _, op := range tier {
			if op.String() == opString {
				return i
			}
		}
	}
	return -1
}

func TestResolveOrdersCreatesByDependency(t *testing.T) {
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Creates: []model.Entity{model.Organization{Name: "eng"}}},
		model.KindTeam:         {Creates: []model.Entity{model.Team{Name: "platform", Organization: "eng"}}},
		model.KindUser:         {Creates: []model.Entity{model.User{Username: "alice", IsActive: true}}},
		model.KindRoleDefinition: {Creates: []model.Entity{
			model.RoleDefinition{Name: "admin", Permissions: []string{"*"}, Scope: model.ScopeOrganization},
		}},
		model.KindRoleAssignment: {Creates: []model.Entity{model.RoleAssignment{
			Principal: model.Principal{Kind: model.PrincipalUser, Name: "alice"},
			Role:      "admin",
			Target:    model.Ref{Kind: model.KindOrganization, Key: "eng"},
		}}},
	}

	plan, err := engine.Resolve(changes, noLive())
	require.NoError(t, err)

	org := tierOf(plan, "create organization:eng")
	team := tierOf(plan, "create team:eng/platform")
	user := tierOf(plan, "create user:alice")
	role := tierOf(plan, "create role_definition:admin")
	assignment := tierOf(plan, "create role_assignment:user:alice+admin@organization:eng")

	assert.Less(t, org, team, "organization create precedes team create")
	assert.Less(t, org, assignment)
	assert.Less(t, user, assignment)
	assert.Less(t, role, assignment)
	assert.Equal(t, 0, org)
	assert.Equal(t, 0, user, "independent creates share the first tier")
	assert.Equal(t, 0, role)
}

func TestResolveOrdersDeletesInReverse(t *testing.T) {
	org := model.Organization{Name: "eng"}
	team := model.Team{Name: "platform", Organization: "eng"}
	assignment := model.RoleAssignment{
		Principal: model.Principal{Kind: model.PrincipalTeam, Name: "eng/platform"},
		Role:      "admin",
		Target:    model.Ref{Kind: model.KindOrganization, Key: "eng"},
	}
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization:   {Deletes: []model.Entity{org}},
		model.KindTeam:           {Deletes: []model.Entity{team}},
		model.KindRoleAssignment: {Deletes: []model.Entity{assignment}},
	}

	plan, err := engine.Resolve(changes, noLive())
	require.NoError(t, err)

	assignmentTier := tierOf(plan, "delete "+assignment.Ref().String())
	teamTier := tierOf(plan, "delete team:eng/platform")
	orgTier := tierOf(plan, "delete organization:eng")

	assert.Less(t, assignmentTier, teamTier, "assignment delete precedes team delete")
	assert.Less(t, teamTier, orgTier, "team delete precedes organization delete")
}

func TestResolveUpdateWaitsForDependencyCreate(t *testing.T) {
	live := map[model.Kind]map[string]model.Entity{
		model.KindTeam: {"eng/platform": model.Team{Name: "platform", Organization: "eng"}},
	}
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Creates: []model.Entity{model.Organization{Name: "eng"}}},
		model.KindTeam: {Updates: []model.Entity{
			model.Team{Name: "platform", Organization: "eng", Description: "updated"},
		}},
	}

	plan, err := engine.Resolve(changes, live)
	require.NoError(t, err)
	assert.Less(t,
		tierOf(plan, "create organization:eng"),
		tierOf(plan, "update team:eng/platform"),
	)
}

func TestResolveSatisfiesReferencesFromLiveState(t *testing.T) {
	live := map[model.Kind]map[string]model.Entity{
		model.KindOrganization: {"eng": model.Organization{Name: "eng"}},
	}
	changes := map[model.Kind]engine.ChangeSet{
		model.KindTeam: {Creates: []model.Entity{model.Team{Name: "platform", Organization: "eng"}}},
	}

	plan, err := engine.Resolve(changes, live)
	require.NoError(t, err)
	require.Len(t, plan.Tiers, 1)
}

func TestResolveRejectsDanglingReference(t *testing.T) {
	changes := map[model.Kind]engine.ChangeSet{
		model.KindTeam: {Creates: []model.Entity{model.Team{Name: "platform", Organization: "ghost"}}},
	}

	_, err := engine.Resolve(changes, noLive())
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "organization:ghost")
}

func TestResolveRejectsReferenceToPrunedEntity(t *testing.T) {
	live := map[model.Kind]map[string]model.Entity{
		model.KindOrganization: {"eng": model.Organization{Name: "eng"}},
	}
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Deletes: []model.Entity{model.Organization{Name: "eng"}}},
		model.KindTeam:         {Creates: []model.Entity{model.Team{Name: "platform", Organization: "eng"}}},
	}

	_, err := engine.Resolve(changes, live)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "pruned")
}

func TestResolveRejectsPruningDependencyOfUnchangedEntity(t *testing.T) {
	org := model.Organization{Name: "eng"}
	team := model.Team{Name: "platform", Organization: "eng"}
	live := map[model.Kind]map[string]model.Entity{
		model.KindOrganization: {"eng": org},
		model.KindTeam:         {"eng/platform": team},
	}
	// The team is declared and converged; only the organization fell
	// out of desired state.
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Deletes: []model.Entity{org}},
		model.KindTeam:         {Unchanged: []model.Entity{team}},
	}

	_, err := engine.Resolve(changes, live)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "team:eng/platform references organization:eng")
	assert.Contains(t, err.Error(), "pruned")
}

func TestResolveDetectsCycle(t *testing.T) {
	// The real entity model is acyclic; build one artificially.
	a := fakeEntity{kind: model.KindOrganization, key: "a", deps: []model.Ref{{Kind: model.KindOrganization, Key: "b"}}}
	b := fakeEntity{kind: model.KindOrganization, key: "b", deps: []model.Ref{{Kind: model.KindOrganization, Key: "a"}}}
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Creates: []model.Entity{a, b}},
	}

	_, err := engine.Resolve(changes, noLive())
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveIsDeterministic(t *testing.T) {
	changes := map[model.Kind]engine.ChangeSet{
		model.KindOrganization: {Creates: []model.Entity{
			model.Organization{Name: "zeta"},
			model.Organization{Name: "alpha"},
			model.Organization{Name: "mid"},
		}},
		model.KindUser: {Creates: []model.Entity{model.User{Username: "alice", IsActive: true}}},
	}

	first, err := engine.Resolve(changes, noLive())
	require.NoError(t, err)
	second, err := engine.Resolve(changes, noLive())
	require.NoError(t, err)

	var a, b []string
	for _, op := range first.Operations() {
		a = append(a, op.String())
	}
	for _, op := range second.Operations() {
		b = append(b, op.String())
	}
	assert.Equal(t, a, b)
}
